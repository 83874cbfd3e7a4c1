package documents

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NumberGenerator produces unique human-readable document numbers in the form
// PREFIX[-DEPT]-YYYYMMDD-NNNN with a per-day sequence. It must run inside the
// document creation transaction so the read-increment pair is atomic; the
// unique index on document_number backstops collisions.
type NumberGenerator struct {
	prefix string
}

func NewNumberGenerator(prefix string) *NumberGenerator {
	if prefix == "" {
		prefix = "DOC"
	}
	return &NumberGenerator{prefix: prefix}
}

// Next returns the next document number for today. departmentCode may be
// empty for users without a department.
func (g *NumberGenerator) Next(ctx context.Context, repo Repository, departmentCode string, now time.Time) (string, error) {
	dayPrefix := g.prefix
	if departmentCode != "" {
		dayPrefix += "-" + departmentCode
	}
	dayPrefix += "-" + now.Format("20060102") + "-"

	latest, err := repo.LatestDocumentNumber(ctx, dayPrefix)
	if err != nil {
		return "", err
	}

	sequence := 1
	if latest != "" {
		parts := strings.Split(latest, "-")
		if last, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			sequence = last + 1
		}
	}

	return fmt.Sprintf("%s%04d", dayPrefix, sequence), nil
}
