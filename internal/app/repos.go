package app

import (
	"gorm.io/gorm"

	repos "github.com/yungbote/neurobridge-srs/internal/data/repos/learning"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
)

type Repos struct {
	Card         repos.CardRepo
	ReviewLog    repos.ReviewLogRepo
	Parameters   repos.FSRSParametersRepo
	TopicMastery repos.TopicMasteryRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Card:         repos.NewCardRepo(db, log),
		ReviewLog:    repos.NewReviewLogRepo(db, log),
		Parameters:   repos.NewFSRSParametersRepo(db, log),
		TopicMastery: repos.NewTopicMasteryRepo(db, log),
	}
}
