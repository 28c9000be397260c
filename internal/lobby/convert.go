package lobby

import (
	"github.com/DoyleJ11/element-battle-backend/internal/elements"
	"github.com/DoyleJ11/element-battle-backend/internal/engine"
	pt "github.com/DoyleJ11/element-battle-backend/pkg/types"
)

func scores(in []engine.Score) []pt.Score {
	out := make([]pt.Score, len(in))
	for i, s := range in {
		out[i] = pt.Score{Name: s.Name, Score: s.Score}
	}
	return out
}

func players(s engine.State) []pt.PlayerView {
	out := make([]pt.PlayerView, len(s.Players))
	for i, p := range s.Players {
		out[i] = pt.PlayerView{ID: p.ID, Name: p.Name, Score: p.Score}
	}
	return out
}

func ability(sub engine.Submission) pt.Ability {
	return pt.Ability{
		OwnerID:     sub.OwnerID,
		Name:        sub.Name,
		Elements:    elements.Names(sub.Elements),
		Description: sub.Description,
		ImageRef:    sub.ImageRef,
		Power:       sub.Power,
	}
}

func roomJoined(s engine.State) pt.RoomJoined {
	return pt.RoomJoined{Players: players(s)}
}

func playerLeft(id string) pt.PlayerLeft {
	return pt.PlayerLeft{ID: id}
}

func roundStart(s engine.State) pt.RoundStart {
	sets := make([][]string, len(s.Sets))
	for i, set := range s.Sets {
		sets[i] = elements.Names(set)
	}
	return pt.RoundStart{
		Round:  s.Round,
		Type:   string(s.RoundType),
		Sets:   sets,
		Scores: scores(s.Scores()),
	}
}

func battleResult(b engine.Battle) pt.BattleResult {
	return pt.BattleResult{
		Round:     b.Round,
		Winner:    b.Winner,
		Abilities: []pt.Ability{ability(b.Abilities[0]), ability(b.Abilities[1])},
		Scores:    scores(b.Scores),
		Narrative: b.Narrative,
	}
}

func gameOver(s engine.State) pt.GameOver {
	return pt.GameOver{Scores: scores(s.Scores())}
}

// RoomView is the public read-only summary of a lobby.
func (v View) RoomView() pt.RoomView {
	return pt.RoomView{
		RoomCode:  v.State.Code,
		Phase:     string(v.State.Phase),
		Round:     v.State.Round,
		RoundType: string(v.State.RoundType),
		Players:   players(v.State),
		Pending:   len(v.State.Pending),
	}
}
