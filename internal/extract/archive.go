package extract

import (
	"bytes"
	"encoding/json"
)

// Series is one hub's prices for a year; nil marks a missing value.
type Series struct {
	Hub    string
	Prices []*float64
}

// Archive maps hub to price series, keeping insertion order on encode.
type Archive struct {
	Year   int
	Series []Series
}

// Get returns the series for a hub.
func (a *Archive) Get(hub string) ([]*float64, bool) {
	for _, s := range a.Series {
		if s.Hub == hub {
			return s.Prices, true
		}
	}
	return nil, false
}

// Hubs lists the hubs in insertion order.
func (a *Archive) Hubs() []string {
	out := make([]string, len(a.Series))
	for i, s := range a.Series {
		out[i] = s.Hub
	}
	return out
}

func (a *Archive) add(hub string, prices []*float64) {
	a.Series = append(a.Series, Series{Hub: hub, Prices: prices})
}

// MarshalJSON writes {"HB_NORTH": [..], ...} in insertion order.
func (a *Archive) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range a.Series {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Hub)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		prices := s.Prices
		if prices == nil {
			prices = []*float64{}
		}
		vals, err := json.Marshal(prices)
		if err != nil {
			return nil, err
		}
		buf.Write(vals)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an archive back, preserving the file's key order.
func (a *Archive) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	a.Series = nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		hub, _ := tok.(string)
		var prices []*float64
		if err := dec.Decode(&prices); err != nil {
			return err
		}
		a.add(hub, prices)
	}
	_, err := dec.Token()
	return err
}
