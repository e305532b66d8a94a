package query

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
)

const fingerprintDomain = "ascetic-orm/plan/v1"

// Fingerprint hashes the parts with a domain prefix. Every part is length
// prefixed, so that no two part lists hash alike.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

type fingerprintOptions struct {
	dialect            string
	modelVersion       string
	useRelationalNulls bool
	precompiled        bool
}

// queryFingerprint identifies the plan of a funcletized query. Values are
// parameters at this point, only their nullness takes part.
func queryFingerprint(query *q.Query, parameters map[string]any, opts fingerprintOptions) string {
	root := query.Root()
	parts := []string{
		"dialect=" + opts.dialect,
		"model=" + opts.modelVersion,
		"root=" + root.EntityType().Name(),
		fmt.Sprintf("options=relnulls:%t,precompiled:%t", opts.useRelationalNulls, opts.precompiled),
		"tracking=" + query.Tracking().String(),
	}
	if op := root.Temporal(); op != nil {
		if opts.precompiled {
			parts = append(parts, "temporal="+string(op.Kind()))
		} else {
			parts = append(parts, "temporal="+op.String())
		}
	}
	if query.Predicate() != nil {
		parts = append(parts, "where="+q.Print(query.Predicate()))
	}
	for _, o := range query.Orderings() {
		order := "order=" + q.Print(o.Expression)
		if o.Descending {
			order += " DESC"
		}
		parts = append(parts, order)
	}
	for _, path := range query.Includes() {
		parts = append(parts, "include="+strings.Join(path, "."))
	}
	if query.Skip() != nil {
		parts = append(parts, "skip="+q.Print(query.Skip()))
	}
	if query.Take() != nil {
		parts = append(parts, "take="+q.Print(query.Take()))
	}
	names := make([]string, 0, len(parameters))
	for name := range parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		nullness := "value"
		if parameters[name] == nil {
			nullness = "null"
		}
		parts = append(parts, "param="+name+":"+nullness)
	}
	return Fingerprint(parts...)
}
