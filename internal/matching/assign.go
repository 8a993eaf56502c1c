package matching

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/concilia-app/concilia-api/internal/domain"
)

// Input is everything one pipeline run needs, already fetched. The
// service layer gathers it for both the synchronous query path and the
// precompute worker so the two cannot drift.
type Input struct {
	Transactions []domain.BankTransaction
	Entries      []domain.LedgerEntry
	Directory    *Directory
	Mappings     []domain.CustomerMapping
	Records      []domain.ReconciliationRecord
	Weights      Weights
	Thresholds   Thresholds
}

// Run executes the full matching pipeline: extraction, directory lookup,
// scoring, classification, and the greedy exclusive assignment pass.
func Run(in Input) domain.ReconciliationResponse {
	mappingByDoc := make(map[string]domain.CustomerMapping, len(in.Mappings))
	for _, m := range in.Mappings {
		mappingByDoc[m.PayerDocument] = m
	}
	recordByTx := make(map[string]domain.ReconciliationRecord, len(in.Records))
	for _, r := range in.Records {
		recordByTx[r.TransactionID] = r
	}

	// Candidates prefer unpaid entries; fall back to the whole window when
	// everything is already paid. Sorting by entry ID makes the greedy
	// first-seen-wins tie-break deterministic regardless of how AdvBox
	// paginated the listing.
	candidates := make([]domain.LedgerEntry, 0, len(in.Entries))
	for _, e := range in.Entries {
		if e.Unpaid() {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		candidates = append(candidates, in.Entries...)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	consumed := make(map[string]struct{}, len(candidates))
	items := make([]domain.ReconciliationItem, 0, len(in.Transactions))
	summary := domain.ReconciliationSummary{AutoAmount: decimal.Zero}

	for _, tx := range in.Transactions {
		item := domain.ReconciliationItem{Transaction: tx}

		if rec, ok := recordByTx[tx.ID]; ok {
			item.Tier = domain.TierReconciled
			item.Record = &rec
			summary.Reconciled++
			summary.Total++
			items = append(items, item)
			continue
		}

		payer := ExtractPayerInfo(tx.PaymentMetadata, tx.Description)
		item.Payer = payer

		customer := in.Directory.FindCustomerForPayer(payer)
		item.Customer = customer

		var mapping *domain.CustomerMapping
		if payer.Document != "" {
			if m, ok := mappingByDoc[payer.Document]; ok {
				mapping = &m
				item.LinkedCustomer = &m
			}
		}

		var best *domain.MatchResult
		for _, entry := range candidates {
			if _, used := consumed[entry.ID]; used {
				continue
			}
			result := Score(payer, tx.Amount, entry, customer, mapping, in.Weights)
			if best == nil || result.Score > best.Score {
				r := result
				best = &r
			}
		}

		score := 0
		if best != nil {
			score = best.Score
		}
		hasSignal := customer != nil || mapping != nil
		tier := Classify(score, hasSignal, in.Thresholds)
		item.Tier = tier

		// Low-confidence pairings are not surfaced as matches, and the
		// candidate stays available for other transactions.
		if tier != domain.TierNone && best != nil {
			best.Tier = tier
			item.BestMatch = best
			consumed[best.Entry.ID] = struct{}{}
		}

		switch tier {
		case domain.TierAuto:
			summary.Auto++
			summary.AutoAmount = summary.AutoAmount.Add(decimal.NewFromFloat(tx.Amount).Abs())
		case domain.TierPartial:
			summary.Partial++
		default:
			summary.None++
		}
		summary.Total++
		items = append(items, item)
	}

	return domain.ReconciliationResponse{
		Items:      items,
		Summary:    summary,
		ComputedAt: time.Now().UTC(),
	}
}
