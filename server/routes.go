package server

import "github.com/finbridge/mesh-link-gateway/mesh"

func (s *Server) initRoutes() {
	// Health / catch-all. The root pattern also owns unmatched paths, so
	// the handler distinguishes a real health check from an unknown route.
	s.RegisterRouteFunc(RouteRoot, s.RootHandler())

	// Link token issuance
	s.RegisterRouteHandler("POST "+RouteLinkToken, ChainMiddleware(s.LinkTokenHandler(""), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLinkTokenConnect, ChainMiddleware(s.LinkTokenHandler(mesh.ProductConnect), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLinkTokenPay, ChainMiddleware(s.LinkTokenHandler(mesh.ProductPay), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLinkTokenCallback, ChainMiddleware(s.LinkCallbackHandler(), s.APIMiddleware()...))

	// Preflight. Method-scoped patterns never see OPTIONS, so the mesh
	// subtree gets an explicit preflight route for the CORS middleware.
	s.RegisterRouteHandler("OPTIONS /mesh/", ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))

	// Authenticated proxy routes
	s.RegisterRouteHandler("POST "+RoutePay, ChainMiddleware(s.PayHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RoutePortfolio, ChainMiddleware(s.PortfolioHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RoutePortfolio, ChainMiddleware(s.PortfolioHandler(), s.APIMiddleware()...))
}
