package metric

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Domain prefixes for content hashing.
// Version suffix enables future algorithm migration.
const (
	DomainLineItems = "finbench/lineitems/v1"
	DomainSource    = "finbench/source/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash computes a stable hash over a line-item subset.
//
// The hash is independent of input order: items are serialized in sorted
// (entity, period, line, column) order. It identifies the exact inputs of a
// KPI computation, making calculator results safe to memoize by
// (entity, period, kpi key, snapshot hash).
func SnapshotHash(items []LineItem) string {
	sorted := make([]LineItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})

	var sb strings.Builder
	for _, item := range sorted {
		sb.WriteString(CanonicalString(item.EntityID))
		sb.WriteByte(0x1f)
		sb.WriteString(strconv.Itoa(item.Period))
		sb.WriteByte(0x1f)
		sb.WriteString(item.Line)
		sb.WriteByte(0x1f)
		sb.WriteString(item.Column)
		sb.WriteByte(0x1f)
		// Exact bit pattern, not a rounded decimal rendering.
		sb.WriteString(strconv.FormatFloat(item.Value, 'x', -1, 64))
		sb.WriteByte(0x1e)
	}
	return hashWithDomain(DomainLineItems, []byte(sb.String()))
}

// SourceHash fingerprints a full build input: the line-item snapshot plus
// the definition and scope sets. Two builds with equal source hashes must
// produce identical kpi_values and benchmark_stats content.
func SourceHash(snapshotHash string, defKeys, scopeIDs []string) string {
	dk := append([]string(nil), defKeys...)
	si := append([]string(nil), scopeIDs...)
	sort.Strings(dk)
	sort.Strings(si)
	payload := fmt.Sprintf("%s\x00defs=%s\x00scopes=%s",
		snapshotHash, strings.Join(dk, ","), strings.Join(si, ","))
	return hashWithDomain(DomainSource, []byte(payload))
}
