package rediscache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/whitespace-ai/oja/retail"
)

func TestIsStale(t *testing.T) {
	assert := assert.New(t)
	s := &Source{HitTTL: time.Hour, ErrTTL: time.Minute}

	// successful entries are bounded by the redis TTL, never stale here
	assert.False(s.isStale(time.Now().Add(-2*time.Hour), ""))

	// errored entries go stale after ErrTTL
	assert.False(s.isStale(time.Now(), "backend down"))
	assert.True(s.isStale(time.Now().Add(-2*time.Minute), "backend down"))
}

func TestRestore(t *testing.T) {
	assert := assert.New(t)

	e := entry[int]{Updated: time.Now(), Value: 42}
	v, err := restore(&e, retail.ErrRecordNotFound)
	assert.NoError(err)
	assert.Equal(42, v)

	e = entry[int]{Updated: time.Now(), NotFound: true}
	_, err = restore(&e, retail.ErrRecordNotFound)
	assert.ErrorIs(err, retail.ErrRecordNotFound)

	e = entry[int]{Updated: time.Now(), ErrMsg: "warehouse exploded"}
	_, err = restore(&e, retail.ErrRecordNotFound)
	assert.ErrorIs(err, retail.ErrQueryFailed)
	assert.Contains(err.Error(), "warehouse exploded")

	e = entry[int]{Updated: time.Now(), Invalid: true, ErrMsg: "bad lga filter"}
	_, err = restore(&e, retail.ErrRecordNotFound)
	assert.ErrorIs(err, retail.ErrInvalidFilter)
}

func TestPageKeys(t *testing.T) {
	assert := assert.New(t)

	p := retail.PageArgs{Page: 2, Size: 10}
	assert.Equal("oja/lgas/10/10/NG025", pageKey("lgas", p, "NG025"))
	assert.Equal("oja/brands/10/10/", pageKey("brands", p, ""))
}

func TestKeySeparatorSafety(t *testing.T) {
	assert := assert.New(t)

	// free-form values must not run into the '/' separators, or distinct
	// lookups would share one cache entry
	assert.NotEqual(searchKey("x/yz", "Lagos"), searchKey("yz", "Lagos/x"))
	assert.Equal(searchKey("jumia", "Lagos"), searchKey("jumia", "Lagos"))

	p := retail.PageArgs{Page: 1, Size: 10}
	a := salesKey(p, retail.SalesFilter{LGAID: "a", StateID: "b", BrandID: "c"})
	b := salesKey(p, retail.SalesFilter{LGAID: "a/b", BrandID: "c"})
	assert.NotEqual(a, b)

	assert.Equal("oja/lgas/0/10/NG%2F025", pageKey("lgas", p, "NG/025"))
}

func TestSalesKey(t *testing.T) {
	assert := assert.New(t)

	p := retail.PageArgs{Page: 1, Size: 10}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	k1 := salesKey(p, retail.SalesFilter{})
	k2 := salesKey(p, retail.SalesFilter{StartDate: &start})
	k3 := salesKey(p, retail.SalesFilter{StartDate: &start, LGAID: "65a1b2c3d4e5f6a7b8c9d0e1"})
	assert.NotEqual(k1, k2)
	assert.NotEqual(k2, k3)
	assert.Contains(k2, "2024-01-01T00:00:00Z")

	// identical filters produce identical keys
	assert.Equal(k2, salesKey(p, retail.SalesFilter{StartDate: &start}))
}
