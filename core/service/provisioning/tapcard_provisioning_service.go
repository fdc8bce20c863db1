// Package provisioning mints card UIDs for manufacturing.
package provisioning

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/in"
	"tapcard_server/core/port/out"
	"tapcard_server/pkg/apperr"
	"tapcard_server/pkg/logger"
)

const (
	MaxBatch    = 5000
	maxAttempts = 8
	prefixSpace = 1000
)

type Service struct {
	cards   out.CardRepository
	storage out.ObjectStorage
	baseURL string
	intn    func(n int) int
}

// NewService builds the provisioner. storage may be nil, in which case no
// manifest is uploaded.
func NewService(cards out.CardRepository, storage out.ObjectStorage, publicBaseURL string) *Service {
	return &Service{
		cards:   cards,
		storage: storage,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		intn:    rand.IntN,
	}
}

var _ in.ProvisioningService = (*Service)(nil)

// Provision inserts req.Count new UNACTIVATED cards. UIDs that already exist
// are redrawn; a shortfall after maxAttempts is reported in the result.
func (s *Service) Provision(ctx context.Context, req *in.ProvisionRequest) (*in.ProvisionResult, error) {
	lo, size, err := uidRange(req)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, req.Count)
	inserted := make([]string, 0, req.Count)
	for attempt := 0; len(inserted) < req.Count && attempt < maxAttempts; attempt++ {
		need := req.Count - len(inserted)
		batch := make([]string, 0, need)
		for len(batch) < need && len(seen) < size {
			uid, err := s.drawUID(lo, size)
			if err != nil {
				return nil, apperr.InternalWithError(err)
			}
			if seen[uid] {
				continue
			}
			seen[uid] = true
			batch = append(batch, uid)
		}
		if len(batch) == 0 {
			break
		}

		got, err := s.cards.InsertBatch(ctx, batch)
		if err != nil {
			return nil, apperr.DatabaseError("insert cards", err)
		}
		inserted = append(inserted, got...)
	}
	sort.Strings(inserted)

	res := &in.ProvisionResult{
		CardUIDs:  inserted,
		Requested: req.Count,
		Inserted:  len(inserted),
	}
	if res.Inserted < res.Requested {
		logger.Warn("[Provisioning.Provision] only %d of %d cards inserted, uid space is crowded", res.Inserted, res.Requested)
	}
	if res.Inserted == 0 || s.storage == nil {
		return res, nil
	}

	var buf bytes.Buffer
	if err := s.WriteManifest(&buf, inserted); err != nil {
		return nil, apperr.InternalWithError(err)
	}
	key := fmt.Sprintf("manifests/cards-%s.csv", time.Now().UTC().Format("20060102T150405Z"))
	url, err := s.storage.Put(ctx, key, &buf, "text/csv")
	if err != nil {
		logger.WithError(err).Error("[Provisioning.Provision] manifest upload failed for %d cards", res.Inserted)
		return res, nil
	}
	res.ManifestURL = url
	return res, nil
}

// drawUID picks a uid from [lo, lo+size).
func (s *Service) drawUID(lo, size int) (string, error) {
	n := s.intn(size)
	if n < 0 || n >= size {
		return "", fmt.Errorf("uid draw %d outside [0, %d)", n, size)
	}
	return domain.CardUIDAt(lo + n)
}

// WriteManifest writes one "card_uid,url" row per card.
func (s *Service) WriteManifest(w io.Writer, uids []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"card_uid", "url"}); err != nil {
		return err
	}
	for _, uid := range uids {
		if err := cw.Write([]string{uid, s.baseURL + "/" + uid}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func uidRange(req *in.ProvisionRequest) (lo, size int, err error) {
	if req.Count < 1 || req.Count > MaxBatch {
		return 0, 0, apperr.InvalidInput("count", fmt.Sprintf("must be between 1 and %d", MaxBatch))
	}
	if req.Prefix == "" {
		return 0, domain.CardUIDSpace, nil
	}
	if !domain.IsCardUID(req.Prefix + "000") {
		return 0, 0, apperr.InvalidInput("prefix", "must be two uppercase letters")
	}
	if req.Count > prefixSpace {
		return 0, 0, apperr.InvalidInput("count", "at most 1000 cards fit under one prefix")
	}
	idx := int(req.Prefix[0]-'A')*26 + int(req.Prefix[1]-'A')
	return idx * prefixSpace, prefixSpace, nil
}
