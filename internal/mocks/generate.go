// Package mocks provides mock implementations of the session ports.
//
// gomock mocks are generated from the interfaces in internal/ports. Hand-written
// doubles with richer behaviour (gates, call counters) live in mocks/auth.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	creds := mocks.NewMockCredentialService(ctrl)
//	creds.EXPECT().Verify(gomock.Any(), domainauth.CategoryClient, "tok").Return(identity, nil)
package mocks

// CredentialService: Login, Register, Verify
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_service_mock.go github.com/target/estate-portal/internal/ports CredentialService

// DashboardSource: FetchDashboard
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=dashboard_source_mock.go github.com/target/estate-portal/internal/ports DashboardSource
