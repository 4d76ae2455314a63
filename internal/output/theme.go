package output

import (
	"image/color"
	"strings"

	"go.uber.org/zap"

	"github.com/torosent/xrayload/internal/logging"
)

const (
	// DefaultTheme is used when a requested theme is unknown.
	DefaultTheme = "default"
	// PreferredTheme is the analyzer's out-of-the-box chart style.
	PreferredTheme = "ggplot"
)

// Theme is the cosmetic styling applied to charts.
type Theme struct {
	Name       string
	Background color.Color
	Grid       color.Color // nil disables the grid
	Palette    []color.Color
}

var themes = map[string]Theme{
	DefaultTheme: {
		Name:       DefaultTheme,
		Background: color.White,
		Palette: []color.Color{
			color.RGBA{31, 119, 180, 255},
			color.RGBA{255, 127, 14, 255},
			color.RGBA{44, 160, 44, 255},
			color.RGBA{214, 39, 40, 255},
			color.RGBA{148, 103, 189, 255},
			color.RGBA{140, 86, 75, 255},
		},
	},
	PreferredTheme: {
		Name:       PreferredTheme,
		Background: color.RGBA{229, 229, 229, 255},
		Grid:       color.White,
		Palette: []color.Color{
			color.RGBA{226, 74, 51, 255},
			color.RGBA{52, 138, 189, 255},
			color.RGBA{152, 142, 213, 255},
			color.RGBA{119, 119, 119, 255},
			color.RGBA{251, 193, 94, 255},
			color.RGBA{142, 186, 66, 255},
		},
	},
}

// ResolveTheme returns the named theme, or the default theme with a warning
// when the name is unknown. It never fails.
func ResolveTheme(name string, log *zap.Logger) Theme {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultTheme
	}
	if t, ok := themes[key]; ok {
		return t
	}
	logging.OrNop(log).Warn("chart theme not available, using default",
		zap.String("theme", name), zap.String("fallback", DefaultTheme))
	return themes[DefaultTheme]
}

func (t Theme) color(i int) color.Color {
	if len(t.Palette) == 0 {
		return color.Black
	}
	return t.Palette[i%len(t.Palette)]
}
