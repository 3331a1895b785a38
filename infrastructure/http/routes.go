package http

import (
	"github.com/go-chi/chi/v5"

	catalogpage "packtrack/frontend/catalog"
	"packtrack/frontend/exports"
	"packtrack/frontend/help"
	"packtrack/frontend/labels"
	"packtrack/frontend/packages"
	"packtrack/frontend/scan"
)

func (s *Server) RegisterHelpRoutes(r chi.Router) {
	r.Get("/help", help.HelpPageQueryHandler(s.Scan))
}

// RegisterSessionRoutes registers the scan session API. Routes below
// /sessions/{sessionID} run with the session in context.
func (s *Server) RegisterSessionRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", scan.ListSessionsQueryHandler(s.Sessions))
		r.Post("/", scan.CreateSessionCommandHandler(s.Sessions, s.Machine, s.Catalog, s.Scan))

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Use(s.ScanSessionMiddleware)
			r.Get("/", scan.SessionQueryHandler())
			r.Delete("/", scan.DeleteSessionCommandHandler(s.Sessions))
			r.Post("/start", scan.StartCommandHandler())
			r.Post("/stop", scan.StopCommandHandler())
			r.Post("/decode", scan.DecodeCommandHandler())
			r.Post("/keys", scan.KeysCommandHandler())
			r.Post("/manual", scan.ManualCommandHandler())
			r.Get("/confirmation", scan.ConfirmationQueryHandler())
			r.Post("/confirmation", scan.ResolveConfirmationCommandHandler())
			r.Delete("/items/{code}", scan.RemoveItemCommandHandler())
			r.Post("/clear", scan.ClearCommandHandler())
			r.Post("/mode", scan.ModeCommandHandler())
			r.Post("/associate", scan.AssociateCommandHandler())
			r.Post("/commit", scan.CommitCommandHandler())
			r.Get("/export.csv", exports.SessionExportCSVHandler())
			r.Post("/record", exports.RecordCommandHandler(s.Recorder))
		})
	})
}

func (s *Server) RegisterPackageRoutes(r chi.Router) {
	r.Route("/packages", func(r chi.Router) {
		r.Post("/qualify", packages.BatchQualifyCommandHandler(s.Machine))
		r.Post("/deliver", packages.BatchDeliverCommandHandler(s.Machine))
		r.Get("/progress", packages.ProgressQueryHandler(s.Machine))
		r.Get("/{code}", packages.PackageQueryHandler(s.Machine))
		r.Get("/{code}/label.pdf", labels.PackageLabelPDFHandler(s.Machine, s.Catalog))
		r.Post("/{code}/assign", packages.AssignCommandHandler(s.Machine))
		r.Post("/{code}/qualify", packages.QualifyCommandHandler(s.Machine))
		r.Post("/{code}/report", packages.ReportCommandHandler(s.Machine))
		r.Post("/{code}/deliver", packages.DeliverCommandHandler(s.Machine))
	})
}

func (s *Server) RegisterCatalogRoutes(r chi.Router) {
	r.Route("/catalog", func(r chi.Router) {
		r.Get("/labels", catalogpage.LabelsQueryHandler(s.DB))
		r.Post("/labels/import", catalogpage.LabelImportCommandHandler(s.DB, s.Audit))
		r.Get("/labels/{code}", catalogpage.LabelQueryHandler(s.Catalog))
		r.Get("/packers", catalogpage.PackersQueryHandler(s.Catalog))
		r.Post("/packers", catalogpage.AddPackerCommandHandler(s.Catalog))
		r.Get("/report-reasons", catalogpage.ReportReasonsQueryHandler(s.Catalog))
	})
}

func (s *Server) RegisterExportRoutes(r chi.Router) {
	r.Get("/scan-logs", exports.ScanLogsQueryHandler(s.DB))
}
