package protocol

import (
	"strconv"
	"time"
)

// Duration is a time.Duration that travels as a number of milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	i, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*d = Duration(time.Duration(i) * time.Millisecond)
	return nil
}

func (d Duration) MarshalJSON() (b []byte, err error) {
	c := strconv.FormatInt(int64(time.Duration(d)/time.Millisecond), 10)
	return []byte(c), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
