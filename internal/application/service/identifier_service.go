package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/sangkips/installments-api/internal/domain/repository"
	"github.com/sangkips/installments-api/pkg/apperror"
)

const (
	saleNumberRetries    = 5
	referenceCodeRetries = 10
	suffixAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// IdentifierService hands out sale numbers and reference codes that are
// unique among the stored sales. It assumes a single writer: two
// concurrent callers may be given the same candidate.
type IdentifierService struct {
	saleRepo repository.SaleRepository
	prefix   string
	now      func() time.Time
}

// NewIdentifierService creates a new identifier service
func NewIdentifierService(saleRepo repository.SaleRepository, prefix string) *IdentifierService {
	if prefix == "" {
		prefix = "VTA"
	}
	return &IdentifierService{
		saleRepo: saleRepo,
		prefix:   prefix,
		now:      time.Now,
	}
}

// GenerateUniqueSaleNumber returns <prefix>-<NNNN>-<YYYYMMDD> where NNNN is
// the same-day counter.
func (s *IdentifierService) GenerateUniqueSaleNumber(ctx context.Context) (string, error) {
	now := s.now()
	suffix := "-" + now.Format("20060102")

	count, err := s.saleRepo.CountBySaleNumberSuffix(ctx, suffix)
	if err != nil {
		return "", apperror.WrapIO("count sale numbers", err)
	}
	base := fmt.Sprintf("%s-%04d%s", s.prefix, count+1, suffix)

	candidate := base
	for range saleNumberRetries {
		taken, err := s.saleRepo.ExistsBySaleNumber(ctx, candidate)
		if err != nil {
			return "", apperror.WrapIO("check sale number", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + randomSuffix(4)
	}

	return fmt.Sprintf("%s-%d", s.prefix, now.UnixMilli()), nil
}

// GenerateUniqueReferenceCode returns a random numeric code. The code grows
// from 8 to 9 and then 12 digits as collisions pile up.
func (s *IdentifierService) GenerateUniqueReferenceCode(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= referenceCodeRetries; attempt++ {
		candidate := randomDigits(referenceCodeLength(attempt))
		taken, err := s.saleRepo.ExistsByReferenceCode(ctx, candidate)
		if err != nil {
			return "", apperror.WrapIO("check reference code", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return strconv.FormatInt(s.now().UnixMilli(), 10), nil
}

// EnsureUniqueSaleNumber keeps preferred when no sale uses it yet
func (s *IdentifierService) EnsureUniqueSaleNumber(ctx context.Context, preferred string) (string, error) {
	preferred = strings.TrimSpace(preferred)
	if preferred != "" {
		taken, err := s.saleRepo.ExistsBySaleNumber(ctx, preferred)
		if err != nil {
			return "", apperror.WrapIO("check sale number", err)
		}
		if !taken {
			return preferred, nil
		}
	}
	return s.GenerateUniqueSaleNumber(ctx)
}

// EnsureUniqueReferenceCode keeps preferred when no sale uses it yet
func (s *IdentifierService) EnsureUniqueReferenceCode(ctx context.Context, preferred string) (string, error) {
	preferred = strings.TrimSpace(preferred)
	if preferred != "" {
		taken, err := s.saleRepo.ExistsByReferenceCode(ctx, preferred)
		if err != nil {
			return "", apperror.WrapIO("check reference code", err)
		}
		if !taken {
			return preferred, nil
		}
	}
	return s.GenerateUniqueReferenceCode(ctx)
}

func referenceCodeLength(attempt int) int {
	switch {
	case attempt <= 4:
		return 8
	case attempt <= 7:
		return 9
	default:
		return 12
	}
}

// randomDigits never starts with zero so the code keeps its length when
// read back as a number
func randomDigits(n int) string {
	var b strings.Builder
	b.Grow(n)
	b.WriteByte(byte('1' + rand.IntN(9)))
	for i := 1; i < n; i++ {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixAlphabet[rand.IntN(len(suffixAlphabet))]
	}
	return string(b)
}
