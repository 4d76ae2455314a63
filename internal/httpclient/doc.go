// Package httpclient provides the HTTP plumbing shared by the JFrog API
// clients.
//
// [NewClient] returns a client tuned for load generation with connection
// reuse across simulated users:
//
//	client := httpclient.NewClient(30*time.Second, users)
//
// [NewJSONRequest] builds a request with a JSON body and, when given an
// [AuthProvider], the Authorization header:
//
//	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, url, payload, provider)
package httpclient
