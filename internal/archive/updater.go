package archive

import (
	"fmt"
	"log"

	"github.com/enfmon/enfmon/internal/basket"
	"github.com/enfmon/enfmon/internal/database"
)

// Updater runs a full ingest: basket from the database, bundles through the
// processor, observations into the price log. Re-running the same day
// replaces that day's rows instead of duplicating them.
type Updater struct {
	DB      *database.DB
	Logger  *log.Logger
	Metrics *Metrics
}

// Run ingests the given bundles for today and returns the number of rows
// written to the price log.
func (u *Updater) Run(bundles []string) (int, error) {
	rows, err := u.DB.GetBasket()
	if err != nil {
		return 0, fmt.Errorf("failed to load basket: %w", err)
	}
	items := make([]basket.Item, 0, len(rows))
	for _, r := range rows {
		it := basket.Item{
			Code:     r.Code,
			Name:     r.Name,
			Category: r.Category,
			Weight:   r.Weight,
			URL:      r.URL,
		}
		if r.ManualPrice != nil {
			it.ManualPrice = *r.ManualPrice
		}
		items = append(items, it)
	}

	p := &Processor{Items: items, Logger: u.Logger, Metrics: u.Metrics}
	observations, err := p.Process(bundles, database.GetToday(), database.GetNowClock())
	if err != nil {
		return 0, err
	}

	n, err := u.DB.AppendObservations(observations)
	if err != nil {
		return 0, fmt.Errorf("failed to append observations: %w", err)
	}
	return n, nil
}
