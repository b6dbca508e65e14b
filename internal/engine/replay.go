package engine

import (
	"encoding/json"
	"fmt"
)

// Replay reconstructs a room from its creation config and ordered action
// log. Every record must apply cleanly; a rejection means the log does not
// belong to this config and seed.
func Replay(cfg Config, log []ActionRecord) (*Game, error) {
	if cfg.Seed == 0 {
		return nil, fmt.Errorf("replay: config must carry the original seed")
	}
	g, err := NewGame(cfg)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	for _, rec := range log {
		if err := g.applyRecord(rec); err != nil {
			return nil, fmt.Errorf("replay action %d (%s by %s): %w", rec.Seq, rec.Kind, rec.Spirit, err)
		}
	}
	if failed, ferr := g.Failed(); failed {
		return nil, fmt.Errorf("replay: room failed: %w", ferr)
	}
	return g, nil
}

// applyRecord re-submits one logged action.
func (g *Game) applyRecord(rec ActionRecord) error {
	switch rec.Kind {
	case InputVagrantAction:
		var act VagrantAction
		if err := json.Unmarshal(rec.Payload, &act); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		_, err := g.SubmitVagrantAction(rec.Spirit, act)
		return err
	case InputAgendaChoice:
		var p indexPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		_, err := g.SubmitAgendaChoice(rec.Spirit, p.Index)
		return err
	case InputChangeChoice:
		var p indexPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		_, err := g.SubmitChangeChoice(rec.Spirit, p.Index)
		return err
	case InputEjectionReplacement:
		var p ejectionPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		_, err := g.SubmitEjectionReplacement(rec.Spirit, p.Remove, p.Add)
		return err
	case InputSpoilsChoices:
		var p indicesPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		_, err := g.SubmitSpoilsChoices(rec.Spirit, p.Indices)
		return err
	case InputSpoilsChangeChoices:
		var p indicesPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		_, err := g.SubmitSpoilsChangeChoices(rec.Spirit, p.Indices)
		return err
	default:
		return fmt.Errorf("unknown input kind %q", rec.Kind)
	}
}
