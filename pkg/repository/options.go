package repository

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// allKey is the cache key for a lookup with no options.
const allKey = "all"

type optionFlag uint8

const (
	optForceReload optionFlag = 1 << iota
	optWithDeleted
	optLimit
	optOrder
)

var optionNames = map[optionFlag]string{
	optForceReload: "force_reload",
	optWithDeleted: "with_deleted",
	optLimit:       "limit",
	optOrder:       "order",
}

// LoadOption tunes association reads and finders.
type LoadOption func(*loadOptions)

type loadOptions struct {
	given       optionFlag
	forceReload bool
	withDeleted bool
	limit       int
	descending  bool
}

// ForceReload bypasses the reference cache and refreshes it.
func ForceReload() LoadOption {
	return func(o *loadOptions) {
		o.given |= optForceReload
		o.forceReload = true
	}
}

// WithDeleted includes soft-deleted entities.
func WithDeleted() LoadOption {
	return func(o *loadOptions) {
		o.given |= optWithDeleted
		o.withDeleted = true
	}
}

// Limit caps the number of returned entities. Zero means no limit.
func Limit(n int) LoadOption {
	return func(o *loadOptions) {
		o.given |= optLimit
		if n < 0 {
			n = 0
		}
		o.limit = n
	}
}

// Descending reverses the default creation order.
func Descending() LoadOption {
	return func(o *loadOptions) {
		o.given |= optOrder
		o.descending = true
	}
}

func collectOptions(opts []LoadOption) loadOptions {
	var o loadOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// check rejects options outside allowed.
func (o loadOptions) check(op string, allowed optionFlag) error {
	extra := o.given &^ allowed
	if extra == 0 {
		return nil
	}
	var names []string
	for _, f := range []optionFlag{optForceReload, optWithDeleted, optLimit, optOrder} {
		if extra&f != 0 {
			names = append(names, optionNames[f])
		}
	}
	return invalidf("%s does not accept %s", op, strings.Join(names, ", "))
}

// fingerprint is the reference cache key for o. ForceReload is not part of
// it, and options equal to their defaults collapse to "all".
func (o loadOptions) fingerprint() string {
	if !o.withDeleted && o.limit == 0 && !o.descending {
		return allKey
	}
	var b strings.Builder
	b.WriteString("limit=")
	b.WriteString(strconv.Itoa(o.limit))
	b.WriteString(";order=")
	if o.descending {
		b.WriteString("desc")
	} else {
		b.WriteString("asc")
	}
	b.WriteString(";with_deleted=")
	b.WriteString(strconv.FormatBool(o.withDeleted))
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

const (
	singleOptions  = optForceReload | optWithDeleted
	manyOptions    = optForceReload | optWithDeleted | optLimit | optOrder
	throughOptions = optForceReload | optWithDeleted | optLimit
	countOptions   = optForceReload | optWithDeleted
	findOptions    = optWithDeleted
	listOptions    = optWithDeleted | optLimit | optOrder
)
