package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
)

// Ancestors walks referrer links upward, nearest first, stopping at a root or
// after MaxNetworkDepth hops. The forest is acyclic by construction, but the
// walk is still bounded and tracks visited ids in case that invariant is ever
// relaxed.
func (s *Service) Ancestors(ctx context.Context, userID uuid.UUID) ([]domain.User, error) {
	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	ancestors := make([]domain.User, 0, domain.MaxNetworkDepth)
	visited := map[uuid.UUID]bool{current.UserID: true}
	for hop := 0; hop < domain.MaxNetworkDepth; hop++ {
		if current.ReferrerID == nil {
			break
		}
		if visited[*current.ReferrerID] {
			return nil, fmt.Errorf("referral chain revisits user %s", current.ReferrerID)
		}
		parent, err := s.users.GetByID(ctx, *current.ReferrerID)
		if err != nil {
			return nil, fmt.Errorf("load ancestor at level %d: %w", hop+1, err)
		}
		visited[parent.UserID] = true
		ancestors = append(ancestors, parent)
		current = parent
	}
	return ancestors, nil
}

type networkEntry struct {
	userID uuid.UUID
	level  int
}

// descendantIDs expands the subtree level by level, materializing only ids.
// Ordering within a level is registration order, so repeated paginated calls
// stay stable as new users join (new ids only ever append).
func (s *Service) descendantIDs(ctx context.Context, rootID uuid.UUID, maxLevel int) ([]networkEntry, [domain.MaxNetworkDepth]int, error) {
	var perLevel [domain.MaxNetworkDepth]int
	if maxLevel <= 0 || maxLevel > domain.MaxNetworkDepth {
		maxLevel = domain.MaxNetworkDepth
	}
	entries := make([]networkEntry, 0)
	frontier := []uuid.UUID{rootID}
	for level := 1; level <= maxLevel; level++ {
		if len(frontier) == 0 {
			break
		}
		children, err := s.users.ListChildIDs(ctx, frontier)
		if err != nil {
			return nil, perLevel, fmt.Errorf("expand level %d: %w", level, err)
		}
		perLevel[level-1] = len(children)
		for _, id := range children {
			entries = append(entries, networkEntry{userID: id, level: level})
		}
		frontier = children
	}
	return entries, perLevel, nil
}

// Network returns the root user plus a flat, paginated view of levels 1-3,
// with per-level counts. Full user rows are fetched only for the requested
// page slice.
func (s *Service) Network(ctx context.Context, userID uuid.UUID, page, limit int) (NetworkResponse, error) {
	root, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return NetworkResponse{}, err
	}
	page, limit = s.normalizePage(page, limit)

	entries, perLevel, err := s.descendantIDs(ctx, root.UserID, domain.MaxNetworkDepth)
	if err != nil {
		return NetworkResponse{}, err
	}
	total := len(entries)
	meta := paginationMeta(page, limit, total)

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	pageEntries := entries[start:end]

	ids := make([]uuid.UUID, 0, len(pageEntries))
	for _, e := range pageEntries {
		ids = append(ids, e.userID)
	}
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return NetworkResponse{}, err
	}
	byID := make(map[uuid.UUID]domain.User, len(users))
	for _, u := range users {
		byID[u.UserID] = u
	}

	network := make([]NetworkUser, 0, len(pageEntries))
	for _, e := range pageEntries {
		u, ok := byID[e.userID]
		if !ok {
			continue
		}
		referrerID := uuid.Nil
		if u.ReferrerID != nil {
			referrerID = *u.ReferrerID
		}
		network = append(network, NetworkUser{
			UserItem:   toUserItem(u),
			Level:      e.level,
			ReferrerID: referrerID,
		})
	}

	return NetworkResponse{
		RootUser: toUserItem(root),
		Network:  network,
		Stats: NetworkStats{
			TotalReferrals: total,
			Level1Count:    perLevel[0],
			Level2Count:    perLevel[1],
			Level3Count:    perLevel[2],
			TotalPages:     meta.Pages,
			CurrentPage:    page,
			HasNextPage:    meta.HasNext,
			HasPrevPage:    meta.HasPrev,
		},
		Pagination: meta,
	}, nil
}
