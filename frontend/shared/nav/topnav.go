package nav

import "packtrack/infrastructure/scansession"

// TopNavData is shared with page renderers.
type TopNavData struct {
	Encargado string
	Workflow  string
	Mode      string
	Area      string
}

func BuildTopNavData(snap scansession.Snapshot) TopNavData {
	encargado := snap.Operator
	if encargado == "" {
		encargado = "No encargado selected"
	}
	return TopNavData{Encargado: encargado, Workflow: string(snap.Workflow), Mode: string(snap.Mode), Area: snap.Area}
}
