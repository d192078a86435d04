package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byeongteuk/btmap/internal/model"
)

func TestCarryOver(t *testing.T) {
	lat, lng := 37.5, 127.0
	old := registryCompany("가", "서울 강남구 1")
	old.Address = model.Str("서울 강남구 2")
	old.Jobplanet = &model.JobplanetData{URL: model.Str("https://www.jobplanet.co.kr/companies/1")}
	old.Lat, old.Lng = &lat, &lng
	bare := registryCompany("나", "부산 해운대구 1")

	fresh := registryCompany("가", "서울 강남구 1")
	fresh.MMA.Phone = model.Str("02-000-0000")
	freshBare := registryCompany("나", "부산 해운대구 1")
	added := registryCompany("다", "대구 중구 1")

	n := carryOver([]*model.Company{fresh, freshBare, added}, []*model.Company{old, bare})
	assert.Equal(t, 1, n)

	require.NotNil(t, fresh.Jobplanet)
	assert.Equal(t, "https://www.jobplanet.co.kr/companies/1", model.Deref(fresh.Jobplanet.URL))
	assert.Equal(t, 37.5, *fresh.Lat)
	assert.Equal(t, "서울 강남구 1", model.Deref(fresh.Address), "registry fields come from the new parse")
	assert.Equal(t, "02-000-0000", model.Deref(fresh.MMA.Phone))

	assert.Nil(t, freshBare.Jobplanet)
	assert.Nil(t, added.Wanted)
}

func TestCarryOver_EmptyExisting(t *testing.T) {
	c := registryCompany("가", "서울 강남구 1")
	assert.Equal(t, 0, carryOver([]*model.Company{c}, nil))
	assert.Nil(t, c.Jobplanet)
}
