package xray

type repositoryConfig struct {
	Key         string `json:"key"`
	ProjectKey  string `json:"projectKey"`
	PackageType string `json:"packageType"`
	RClass      string `json:"rclass"`
	XrayIndex   bool   `json:"xrayIndex"`
}

type policyConfig struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Type        string       `json:"type"`
	Rules       []policyRule `json:"rules"`
}

type policyRule struct {
	Name     string         `json:"name"`
	Criteria policyCriteria `json:"criteria"`
	Actions  policyActions  `json:"actions"`
	Priority int            `json:"priority"`
}

type policyCriteria struct {
	MaliciousPackage    bool   `json:"malicious_package"`
	FixVersionDependant  bool   `json:"fix_version_dependant"`
	MinSeverity          string `json:"min_severity"`
}

type policyActions struct {
	Mails                          []string      `json:"mails"`
	Webhooks                       []string      `json:"webhooks"`
	FailBuild                      bool          `json:"fail_build"`
	BlockReleaseBundleDistribution bool          `json:"block_release_bundle_distribution"`
	BlockReleaseBundlePromotion    bool          `json:"block_release_bundle_promotion"`
	NotifyDeployer                 bool          `json:"notify_deployer"`
	NotifyWatchRecipients          bool          `json:"notify_watch_recipients"`
	CreateTicketEnabled            bool          `json:"create_ticket_enabled"`
	BlockDownload                  blockDownload `json:"block_download"`
}

type blockDownload struct {
	Active    bool `json:"active"`
	Unscanned bool `json:"unscanned"`
}

type watchConfig struct {
	GeneralData      watchGeneral     `json:"general_data"`
	ProjectResources watchResources   `json:"project_resources"`
	AssignedPolicies []assignedPolicy `json:"assigned_policies"`
}

type watchGeneral struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

type watchResources struct {
	Resources []watchResource `json:"resources"`
}

type watchResource struct {
	Type     string   `json:"type"`
	BinMgrID string   `json:"bin_mgr_id"`
	Name     string   `json:"name"`
	Filters  []string `json:"filters"`
}

type assignedPolicy struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type artifactStatusQuery struct {
	Repo string `json:"repo"`
	Path string `json:"path"`
}

type violationsQuery struct {
	Filters violationFilters `json:"filters"`
}

type violationFilters struct {
	WatchName     string             `json:"watch_name"`
	ViolationType string             `json:"violation_type"`
	MinSeverity   string             `json:"min_severity"`
	Resources     violationResources `json:"resources"`
	Pagination    pagination         `json:"pagination"`
}

type violationResources struct {
	Artifacts []artifactStatusQuery `json:"artifacts"`
}

type pagination struct {
	OrderBy   string `json:"order_by"`
	Direction string `json:"direction"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

func newRepositoryConfig(key string) repositoryConfig {
	return repositoryConfig{
		Key:         key,
		PackageType: "docker",
		RClass:      "local",
		XrayIndex:   true,
	}
}

func newPolicyConfig(name string) policyConfig {
	return policyConfig{
		Name:        name,
		Description: "Test security policy",
		Type:        "security",
		Rules: []policyRule{{
			Name:     "test_rule",
			Criteria: policyCriteria{MinSeverity: "high"},
			Actions: policyActions{
				Mails:    []string{},
				Webhooks: []string{},
			},
			Priority: 1,
		}},
	}
}

func newWatchConfig(name, repoKey, policyName string) watchConfig {
	return watchConfig{
		GeneralData: watchGeneral{
			Name:        name,
			Description: "Test watch",
			Active:      true,
		},
		ProjectResources: watchResources{
			Resources: []watchResource{{
				Type:     "repository",
				BinMgrID: "default",
				Name:     repoKey,
				Filters:  []string{},
			}},
		},
		AssignedPolicies: []assignedPolicy{{Name: policyName, Type: "security"}},
	}
}

func newViolationsQuery(watchName string, artifact artifactStatusQuery) violationsQuery {
	return violationsQuery{
		Filters: violationFilters{
			WatchName:     watchName,
			ViolationType: "Security",
			MinSeverity:   "High",
			Resources:     violationResources{Artifacts: []artifactStatusQuery{artifact}},
			Pagination: pagination{
				OrderBy:   "created",
				Direction: "asc",
				Limit:     100,
				Offset:    1,
			},
		},
	}
}
