package view

import (
	"maps"

	"github.com/johnwards/dealerhub/internal/domain"
)

// ModalState is the state of a screen's modal. At most one modal is open.
type ModalState string

// Modal states.
const (
	ModalClosed ModalState = "closed"
	ModalCreate ModalState = "create"
	ModalEdit   ModalState = "edit"
	ModalView   ModalState = "view"
	ModalDelete ModalState = "delete"
)

// ParseModalState validates the name of an openable modal.
func ParseModalState(s string) (ModalState, bool) {
	switch m := ModalState(s); m {
	case ModalCreate, ModalEdit, ModalView, ModalDelete:
		return m, true
	}
	return "", false
}

// Modal is the open dialog of a screen.
type Modal struct {
	State    ModalState     `json:"state"`
	RecordID string         `json:"recordId,omitempty"`
	Record   domain.Record  `json:"record,omitempty"`
	Values   map[string]any `json:"values,omitempty"`
	// Loading is set while a detail fetch is in flight.
	Loading bool `json:"loading"`
	// Saving is set while a submit or delete is in flight.
	Saving bool   `json:"saving"`
	Error  string `json:"error,omitempty"`
}

func (m Modal) open() bool {
	return m.State != "" && m.State != ModalClosed
}

func (m Modal) clone() Modal {
	out := m
	if m.State == "" {
		out.State = ModalClosed
	}
	if m.Record != nil {
		out.Record = m.Record.Clone()
	}
	if m.Values != nil {
		out.Values = maps.Clone(m.Values)
	}
	return out
}
