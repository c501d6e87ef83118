package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/model"
)

func TestPriceFor(t *testing.T) {
	cases := []struct {
		seatType string
		base     int64
		want     int64
	}{
		{model.SeatRegular, 90000, 90000},
		{model.SeatVIP, 90000, 135000},
		{model.SeatCouple, 90000, 180000},
		{model.SeatVIP, 85000, 127500},
	}
	for _, tc := range cases {
		got, err := PriceFor(tc.seatType, tc.base)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "seat type %s base %d", tc.seatType, tc.base)
	}
}

func TestPriceForUnknownType(t *testing.T) {
	_, err := PriceFor("recliner", 90000)
	assert.Error(t, err)
}
