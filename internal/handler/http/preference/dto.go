// Package preference provides HTTP handlers for the subscription preference
// API: the renderable opt-in matrix, wholesale preference replacement, and
// the caller's current subscription pairs.
package preference

import (
	"courier/internal/repository"
	prefUC "courier/internal/usecase/preference"
)

// MatrixDTO is the JSON shape of the preference table.
type MatrixDTO struct {
	Columns []ColumnDTO `json:"columns"`
	Rows    []RowDTO    `json:"rows"`
}

type ColumnDTO struct {
	Alias string `json:"alias"`
	Title string `json:"title"`
}

// CellDTO is one checkbox. An empty ID means the column's channel does not
// carry the row's message type.
type CellDTO struct {
	ID         string `json:"id,omitempty"`
	Supported  bool   `json:"supported"`
	Subscribed bool   `json:"subscribed"`
}

type RowDTO struct {
	Title string    `json:"title"`
	Cells []CellDTO `json:"cells"`
}

// PairDTO is one installed (message type, messenger) opt-in.
type PairDTO struct {
	MessageCls   string `json:"message_cls"`
	MessengerCls string `json:"messenger_cls"`
}

func toMatrixDTO(m *prefUC.Matrix) MatrixDTO {
	dto := MatrixDTO{
		Columns: make([]ColumnDTO, 0, len(m.Columns)),
		Rows:    make([]RowDTO, 0, len(m.Rows)),
	}
	for _, col := range m.Columns {
		dto.Columns = append(dto.Columns, ColumnDTO{Alias: col.Alias, Title: col.Title})
	}
	for _, row := range m.Rows {
		cells := make([]CellDTO, 0, len(row.Cells))
		for _, cell := range row.Cells {
			cells = append(cells, CellDTO{
				ID:         cell.ID,
				Supported:  cell.Supported,
				Subscribed: cell.Subscribed,
			})
		}
		dto.Rows = append(dto.Rows, RowDTO{Title: row.Title, Cells: cells})
	}
	return dto
}

func toPairDTOs(prefs []repository.Preference) []PairDTO {
	dtos := make([]PairDTO, 0, len(prefs))
	for _, p := range prefs {
		dtos = append(dtos, PairDTO{MessageCls: p.MessageCls, MessengerCls: p.MessengerCls})
	}
	return dtos
}
