// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/vive_track/internal/device"
)

func TestParseSlotKey(t *testing.T) {
	tests := []struct {
		in      string
		want    SlotKey
		wantErr bool
	}{
		{in: "controller#1", want: SlotKey{Class: device.ClassController, Ordinal: 1}},
		{in: "hmd", want: SlotKey{Class: device.ClassHMD}},
		{in: "tracker#3", want: SlotKey{Class: device.ClassTracker, Ordinal: 3}},
		{in: "lighthouse#0", want: SlotKey{Class: device.ClassLighthouse}},
		{in: "wand#0", wantErr: true},
		{in: "controller#x", wantErr: true},
		{in: "controller#-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSlotKey(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSlotKey_RoundTrip(t *testing.T) {
	key := SlotKey{Class: device.ClassTracker, Ordinal: 2}
	got, err := ParseSlotKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, got)
}
