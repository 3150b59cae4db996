package repository

import (
	"encoding/json"
	"fmt"

	"github.com/okian/crease/internal/domain/model"
)

// encodeScore serialises the whole aggregate, undo history included.
func encodeScore(s model.MatchScore) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode score %s: %w", s.MatchID, err)
	}
	return b, nil
}

// decodeScore restores a score and stamps it with the version kept beside
// the payload.
func decodeScore(payload []byte, version uint64) (model.MatchScore, error) {
	var s model.MatchScore
	if err := json.Unmarshal(payload, &s); err != nil {
		return model.MatchScore{}, fmt.Errorf("%w: %w", ErrCorruptScore, err)
	}
	s.Version = version
	if s.ThisOver == nil {
		s.ThisOver = []string{}
	}
	if s.BallByBall == nil {
		s.BallByBall = []model.BallRecord{}
	}
	return s, nil
}
