// Package main provides the entry point for the ProHelper web application.
// It initializes and runs a web server using the Fiber framework that renders
// the marketing landing site, the authenticated organization dashboard with
// billing and module management, and the holding management panel. Permission
// and billing data is consumed from the ProHelper platform REST API; the local
// database only persists client-side state such as sessions and tokens.
package main
