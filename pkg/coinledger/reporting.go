package coinledger

import "context"

// BuildReport assembles the admin-facing read-only aggregates: coins in
// circulation, request counts by status, entry counts by kind, and the top
// spenders by summed absolute debit amount. Point-in-time reads only; the
// mutation path is untouched.
func (service *Service) BuildReport(ctx context.Context, actorID UserID) (Report, error) {
	if err := service.requireAdmin(ctx, actorID); err != nil {
		return Report{}, err
	}
	circulation, err := service.store.SumBalances(ctx)
	if err != nil {
		return Report{}, err
	}
	requestCounts, err := service.store.CountRequestsByStatus(ctx)
	if err != nil {
		return Report{}, err
	}
	entryCounts, err := service.store.CountEntriesByKind(ctx)
	if err != nil {
		return Report{}, err
	}
	topSpenders, err := service.store.TopSpenders(ctx, topSpenderLimit)
	if err != nil {
		return Report{}, err
	}
	return Report{
		CoinsInCirculation: circulation,
		RequestCounts:      requestCounts,
		EntryCounts:        entryCounts,
		TopSpenders:        topSpenders,
	}, nil
}
