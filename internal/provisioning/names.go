package provisioning

import (
	"strings"

	"github.com/gosimple/slug"
	"github.com/rs/xid"
)

const maxNameBase = 40

// GenerateName returns a unique DNS-1123 resource name derived from hint,
// e.g. "grafana-dashboards-d1ek6b2m2bqs73c0dp8g".
func GenerateName(hint string) string {
	base := strings.ReplaceAll(slug.Make(hint), "_", "-")
	if len(base) > maxNameBase {
		base = base[:maxNameBase]
	}
	base = strings.Trim(base, "-")
	if base == "" {
		base = "repository"
	}
	return base + "-" + xid.New().String()
}
