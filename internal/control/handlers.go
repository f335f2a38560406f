package control

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zsiec/metamix/internal/input"
)

// inputInfo is the JSON shape of one input, matching the original's
// get_input_info.
type inputInfo struct {
	ID           input.ID `json:"id"`
	Name         string   `json:"name"`
	Source       string   `json:"source"`
	Sink         string   `json:"sink"`
	SourceFormat string   `json:"sourceFormat"`
	SinkFormat   string   `json:"sinkFormat"`
	IsVirtual    bool     `json:"isVirtual"`
	Caps         capsInfo `json:"caps"`
}

type capsInfo struct {
	SEI  bool `json:"sei"`
	SCTE bool `json:"scte"`
}

func inputInfoFor(in input.Input) inputInfo {
	spec := in.Spec()
	caps := in.Caps()
	return inputInfo{
		ID:           spec.ID,
		Name:         spec.Name,
		Source:       spec.Source,
		Sink:         spec.Sink,
		SourceFormat: spec.SourceFormat,
		SinkFormat:   spec.SinkFormat,
		IsVirtual:    spec.IsVirtual,
		Caps:         capsInfo{SEI: caps.SEI, SCTE: caps.SCTE},
	}
}

// inputRef is how a request names the input it means: either field may be
// set, never both.
type inputRef struct {
	ID   *input.ID `json:"id,omitempty"`
	Name *string   `json:"name,omitempty"`
}

func (s *Server) resolveInputRef(ref inputRef) (input.Input, error) {
	if ref.Name != nil {
		in, ok := s.registry.ByName(*ref.Name)
		if !ok {
			return nil, errors.New("unknown input name")
		}
		return in, nil
	}
	if ref.ID != nil {
		in, ok := s.registry.ByID(*ref.ID)
		if !ok {
			return nil, errors.New("unknown input id")
		}
		return in, nil
	}
	return nil, errors.New(`expected "name" or "id"`)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		QueueSize struct {
			SEI  int `json:"sei"`
			SCTE int `json:"scte"`
		} `json:"queueSize"`
		ClockNow int64 `json:"clockNow"`
	}{
		QueueSize: struct {
			SEI  int `json:"sei"`
			SCTE int `json:"scte"`
		}{
			SEI:  s.group.SEI().Len(),
			SCTE: s.group.SCTE().Len(),
		},
		ClockNow: int64(s.clk.Now()),
	})
}

func (s *Server) handleListInputs(w http.ResponseWriter, _ *http.Request) {
	all := s.registry.All()
	resp := make([]inputInfo, 0, len(all))
	for _, in := range all {
		resp = append(resp, inputInfoFor(in))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrentInput(w http.ResponseWriter, _ *http.Request) {
	resp := make(map[input.Kind]inputInfo, 2)
	for _, kind := range []input.Kind{input.SEIKind, input.SCTEKind} {
		resp[kind] = inputInfoFor(s.registry.CurrentInput(kind))
	}
	writeJSON(w, http.StatusOK, resp)
}

// setCurrentInputRequest accepts either a bare {id|name} (applies to both
// kinds at once) or {sei: {...}, scte: {...}} (applies per kind
// independently), mirroring set_current_input's two call shapes.
type setCurrentInputRequest struct {
	inputRef
	SEI  *inputRef `json:"sei,omitempty"`
	SCTE *inputRef `json:"scte,omitempty"`
}

func (s *Server) handleSetCurrentInput(w http.ResponseWriter, r *http.Request) {
	var req setCurrentInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.ID != nil || req.Name != nil {
		in, err := s.resolveInputRef(req.inputRef)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		for _, kind := range []input.Kind{input.SEIKind, input.SCTEKind} {
			if err := s.registry.SetCurrent(kind, in.Spec().ID); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	if req.SEI == nil && req.SCTE == nil {
		writeError(w, http.StatusBadRequest, `expected "id"/"name" or "sei"/"scte"`)
		return
	}
	if req.SEI != nil {
		in, err := s.resolveInputRef(*req.SEI)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.registry.SetCurrent(input.SEIKind, in.Spec().ID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.SCTE != nil {
		in, err := s.resolveInputRef(*req.SCTE)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.registry.SetCurrent(input.SCTEKind, in.Spec().ID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleRestartInput(w http.ResponseWriter, r *http.Request) {
	var ref inputRef
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, err := s.resolveInputRef(ref)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.ScheduleRestart()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"tsAdjustment": s.tsAdjustment.Load()})
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TSAdjustment *int64 `json:"tsAdjustment,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TSAdjustment != nil {
		s.tsAdjustment.Store(*req.TSAdjustment)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
