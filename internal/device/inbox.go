// internal/device/inbox.go
package device

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/warthog618/sms"
	"github.com/warthog618/sms/encoding/tpdu"
	"github.com/warthog618/sms/encoding/pdumode"
)

// Message is one SIM inbox entry, concatenated parts already joined.
type Message struct {
	Index  int
	Number string
	Body   string
}

type listed struct {
	index int
	tp    *tpdu.TPDU
}

// parseListing decodes the info lines of AT+CMGL=4 (PDU mode).
// Each "+CMGL: <index>,<stat>,[<alpha>],<length>" header is followed by the PDU hex.
// Entries that fail to decode are skipped and reported in the returned error list.
func parseListing(info []string) ([]Message, []error) {
	var (
		entries []listed
		errs    []error
	)

	for i := 0; i < len(info); i++ {
		line := strings.TrimSpace(info[i])
		if !strings.HasPrefix(line, "+CMGL:") {
			continue
		}

		fields := strings.Split(strings.TrimSpace(strings.TrimPrefix(line, "+CMGL:")), ",")
		idx, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			errs = append(errs, fmt.Errorf("device: bad CMGL header %q", line))
			continue
		}
		if i+1 >= len(info) {
			errs = append(errs, fmt.Errorf("device: CMGL %d: missing pdu", idx))
			break
		}
		i++

		tp, err := decodePDU(strings.TrimSpace(info[i]))
		if err != nil {
			errs = append(errs, fmt.Errorf("device: CMGL %d: %w", idx, err))
			continue
		}
		entries = append(entries, listed{index: idx, tp: tp})
	}

	return joinParts(entries), errs
}

func decodePDU(hex string) (*tpdu.TPDU, error) {
	p, err := pdumode.UnmarshalHexString(hex)
	if err != nil {
		return nil, err
	}
	return sms.Unmarshal(p.TPDU)
}

// joinParts reassembles concatenated messages. A reassembled message takes
// the position of its lowest inbox index so arrival order is preserved.
func joinParts(entries []listed) []Message {
	type group struct {
		index int
		parts []listed
	}

	var (
		out    []Message
		groups = map[string]*group{}
		order  []string
	)

	for _, e := range entries {
		segments, _, mref, ok := e.tp.ConcatInfo()
		if !ok || segments <= 1 {
			out = append(out, decodeMessage(e.index, []*tpdu.TPDU{e.tp}))
			continue
		}

		key := fmt.Sprintf("%s_%d", e.tp.OA.Number(), mref)
		g, exists := groups[key]
		if !exists {
			g = &group{index: e.index}
			groups[key] = g
			order = append(order, key)
		}
		if e.index < g.index {
			g.index = e.index
		}
		g.parts = append(g.parts, e)
	}

	for _, key := range order {
		g := groups[key]
		sort.Slice(g.parts, func(i, j int) bool {
			_, si, _, _ := g.parts[i].tp.ConcatInfo()
			_, sj, _, _ := g.parts[j].tp.ConcatInfo()
			return si < sj
		})
		tps := make([]*tpdu.TPDU, 0, len(g.parts))
		for _, p := range g.parts {
			tps = append(tps, p.tp)
		}
		out = append(out, decodeMessage(g.index, tps))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func decodeMessage(index int, tps []*tpdu.TPDU) Message {
	m := Message{Index: index, Number: tps[0].OA.Number()}
	body, err := sms.Decode(tps)
	if err != nil {
		// Undecodable user data still counts as a message so the inbox is cleared.
		return m
	}
	m.Body = string(body)
	return m
}
