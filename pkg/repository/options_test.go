package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name string
		a, b []LoadOption
		same bool
	}{
		{"no options is all", nil, []LoadOption{}, true},
		{"force reload ignored", nil, []LoadOption{ForceReload()}, true},
		{"zero limit is default", nil, []LoadOption{Limit(0)}, true},
		{"order independent", []LoadOption{Limit(3), Descending(), WithDeleted()}, []LoadOption{WithDeleted(), Descending(), Limit(3)}, true},
		{"limit differs", []LoadOption{Limit(3)}, []LoadOption{Limit(4)}, false},
		{"order differs", []LoadOption{Limit(3)}, []LoadOption{Limit(3), Descending()}, false},
		{"visibility differs", nil, []LoadOption{WithDeleted()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := collectOptions(tt.a).fingerprint()
			b := collectOptions(tt.b).fingerprint()
			if tt.same {
				assert.Equal(t, a, b)
			} else {
				assert.NotEqual(t, a, b)
			}
		})
	}

	assert.Equal(t, allKey, collectOptions([]LoadOption{ForceReload()}).fingerprint())
	assert.Regexp(t, `^[0-9a-f]{16}$`, collectOptions([]LoadOption{Limit(2)}).fingerprint())
}

func TestOptionCheck(t *testing.T) {
	o := collectOptions([]LoadOption{ForceReload(), WithDeleted()})
	assert.NoError(t, o.check("user", singleOptions))

	o = collectOptions([]LoadOption{Limit(2), Descending()})
	err := o.check("user", singleOptions)
	assert.True(t, IsInvalidOperation(err))
	assert.Contains(t, err.Error(), "limit, order")

	assert.NoError(t, o.check("comments", manyOptions))
	assert.Error(t, o.check("tags", throughOptions))
}
