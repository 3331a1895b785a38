package lifecycle

import (
	"context"
	"fmt"
	"sort"
)

// PackerProgress is one packer's packages by status.
type PackerProgress struct {
	Packer    string `json:"packer"`
	Assigned  int64  `json:"assigned"`
	Qualified int64  `json:"qualified"`
	Reported  int64  `json:"reported"`
	Delivered int64  `json:"delivered"`
	Total     int64  `json:"total"`
}

func (p *PackerProgress) add(st Status, n int64) {
	switch st {
	case StatusAssigned:
		p.Assigned += n
	case StatusQualified:
		p.Qualified += n
	case StatusReported:
		p.Reported += n
	case StatusDelivered:
		p.Delivered += n
	}
	p.Total += n
}

// Progress summarizes every recorded package.
type Progress struct {
	Totals   PackerProgress   `json:"totals"`
	ByPacker []PackerProgress `json:"by_packer"`
}

// Progress counts packages per packer and status. Packers are ordered by
// open work (assigned plus reported), then name.
func (m *Machine) Progress(ctx context.Context) (Progress, error) {
	counts, err := m.store.CountByPacker(ctx)
	if err != nil {
		return Progress{}, fmt.Errorf("progress: %w", err)
	}
	byPacker := map[string]*PackerProgress{}
	var out Progress
	out.Totals.Packer = "TOTAL"
	for _, c := range counts {
		p, ok := byPacker[c.Packer]
		if !ok {
			p = &PackerProgress{Packer: c.Packer}
			byPacker[c.Packer] = p
		}
		p.add(c.Status, c.Count)
		out.Totals.add(c.Status, c.Count)
	}
	out.ByPacker = make([]PackerProgress, 0, len(byPacker))
	for _, p := range byPacker {
		out.ByPacker = append(out.ByPacker, *p)
	}
	sort.Slice(out.ByPacker, func(i, j int) bool {
		a, b := out.ByPacker[i], out.ByPacker[j]
		if oa, ob := a.Assigned+a.Reported, b.Assigned+b.Reported; oa != ob {
			return oa > ob
		}
		return a.Packer < b.Packer
	})
	return out, nil
}
