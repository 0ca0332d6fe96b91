// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package runtime

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/vive_track/internal/device"
)

// The tracking bridge speaks NMEA 0183 framing with the "VR" talker:
//
//	$VRTCK,<seq>,<devices>*CS
//	$VRDEV,<id>,<class>,<connected>,<pose valid>,<transpose>,<m0>,...,<m15>*CS
//	$VRBTN,<id>,<packet>,<pressed hex>,<touched hex>,<a0x>,<a0y>,...,<a4x>,<a4y>*CS
//
// A tick is a TCK sentence followed by <devices> DEV sentences. BTN
// sentences may appear anywhere and update the latest controller state.
const (
	Talker  = "VR"
	TypeTCK = "TCK"
	TypeDEV = "DEV"
	TypeBTN = "BTN"
)

// TCK starts a tick.
type TCK struct {
	nmea.BaseSentence
	Seq     int64
	Devices int
}

// DEV is one device table entry.
type DEV struct {
	nmea.BaseSentence
	Raw device.Raw
}

// BTN is the state of one controller.
type BTN struct {
	nmea.BaseSentence
	ID    int
	State device.ControllerState
}

// MaxDevices is the largest device count a TCK sentence may announce
// (the OpenVR tracked device limit).
const MaxDevices = 64

var registerSentences = sync.OnceValue(func() error {
	return registerParsers(nmea.RegisterParser)
})

// RegisterSentences installs the bridge sentence parsers in go-nmea. It is
// safe to call more than once; a failed registration is reported every time.
func RegisterSentences() error {
	return registerSentences()
}

func registerParsers(register func(string, nmea.ParserFunc) error) error {
	parsers := []struct {
		typ string
		fn  nmea.ParserFunc
	}{
		{TypeTCK, parseTCK},
		{TypeDEV, parseDEV},
		{TypeBTN, parseBTN},
	}
	for _, p := range parsers {
		if err := register(p.typ, p.fn); err != nil {
			return fmt.Errorf("register %s parser: %w", p.typ, err)
		}
	}
	return nil
}

func parseTCK(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	p.AssertType(TypeTCK)
	seq := p.Int64(0, "sequence")
	n := p.Int64(1, "device count")
	if err := p.Err(); err != nil {
		return nil, err
	}
	if n < 0 || n > MaxDevices {
		return nil, fmt.Errorf("nmea: VRTCK invalid device count: %d", n)
	}
	return TCK{BaseSentence: s, Seq: seq, Devices: int(n)}, nil
}

func parseDEV(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	p.AssertType(TypeDEV)
	m := DEV{BaseSentence: s}
	m.Raw.ID = int(p.Int64(0, "id"))
	m.Raw.NativeClass = uint32(p.Int64(1, "class"))
	m.Raw.Connected = p.Int64(2, "connected") == 1
	m.Raw.PoseValid = p.Int64(3, "pose valid") == 1
	m.Raw.Transpose = p.Int64(4, "transpose") == 1
	for i := range m.Raw.Pose {
		m.Raw.Pose[i] = p.Float64(5+i, "pose")
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseBTN(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	p.AssertType(TypeBTN)
	m := BTN{BaseSentence: s}
	m.ID = int(p.Int64(0, "id"))
	m.State.PacketNum = uint32(p.Int64(1, "packet"))
	pressed := p.String(2, "pressed")
	touched := p.String(3, "touched")
	for i := range m.State.Axes {
		m.State.Axes[i].X = p.Float64(4+2*i, "axis x")
		m.State.Axes[i].Y = p.Float64(5+2*i, "axis y")
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	var err error
	if m.State.ButtonPressed, err = strconv.ParseUint(pressed, 16, 64); err != nil {
		return nil, fmt.Errorf("nmea: VRBTN invalid pressed mask: %s", pressed)
	}
	if m.State.ButtonTouched, err = strconv.ParseUint(touched, 16, 64); err != nil {
		return nil, fmt.Errorf("nmea: VRBTN invalid touched mask: %s", touched)
	}
	return m, nil
}

// FormatSentence frames fields as a "$VR<typ>" sentence with checksum.
func FormatSentence(typ string, fields ...string) string {
	body := Talker + typ
	if len(fields) > 0 {
		body += "," + strings.Join(fields, ",")
	}
	return "$" + body + "*" + nmea.Checksum(body)
}

// FormatTick encodes a full tick (TCK, BTN for every controller state,
// then DEV for every entry), one sentence per line.
func FormatTick(seq int64, table device.Table, controllers map[int]device.ControllerState) string {
	var b strings.Builder
	b.WriteString(FormatSentence(TypeTCK, strconv.FormatInt(seq, 10), strconv.Itoa(len(table))))
	b.WriteString("\r\n")
	for id, st := range controllers {
		b.WriteString(formatBTN(id, st))
		b.WriteString("\r\n")
	}
	for _, r := range table {
		b.WriteString(formatDEV(r))
		b.WriteString("\r\n")
	}
	return b.String()
}

func formatDEV(r device.Raw) string {
	fields := []string{
		strconv.Itoa(r.ID),
		strconv.FormatUint(uint64(r.NativeClass), 10),
		flag(r.Connected),
		flag(r.PoseValid),
		flag(r.Transpose),
	}
	for _, v := range r.Pose {
		fields = append(fields, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return FormatSentence(TypeDEV, fields...)
}

func formatBTN(id int, st device.ControllerState) string {
	fields := []string{
		strconv.Itoa(id),
		strconv.FormatUint(uint64(st.PacketNum), 10),
		strconv.FormatUint(st.ButtonPressed, 16),
		strconv.FormatUint(st.ButtonTouched, 16),
	}
	for _, a := range st.Axes {
		fields = append(fields,
			strconv.FormatFloat(a.X, 'f', -1, 64),
			strconv.FormatFloat(a.Y, 'f', -1, 64))
	}
	return FormatSentence(TypeBTN, fields...)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
