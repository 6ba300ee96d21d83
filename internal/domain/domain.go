package domain

import "github.com/yungbote/neurobridge-srs/internal/domain/learning"

type (
	Card           = learning.Card
	ReviewLog      = learning.ReviewLog
	FSRSParameters = learning.FSRSParameters
	TopicMastery   = learning.TopicMastery
)

const GlobalScopeKey = learning.GlobalScopeKey

var (
	ScopeKey          = learning.ScopeKey
	ResolutionOrder   = learning.ResolutionOrder
	NewFSRSParameters = learning.NewFSRSParameters
)

// Models lists every persisted model, in migration order.
func Models() []any {
	return []any{
		&learning.Card{},
		&learning.ReviewLog{},
		&learning.FSRSParameters{},
		&learning.TopicMastery{},
	}
}
