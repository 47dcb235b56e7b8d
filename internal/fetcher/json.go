package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSONArray streams the elements of a top-level JSON array, such as an
// IBGE localidades response, one value at a time. The error channel carries
// at most one error and both channels close when the body is exhausted.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)
		if err := decodeArray(ctx, json.NewDecoder(r), outCh); err != nil {
			errCh <- err
		}
	}()

	return outCh, errCh
}

func decodeArray[T any](ctx context.Context, dec *json.Decoder, out chan<- T) error {
	tok, err := dec.Token()
	switch {
	case err == io.EOF:
		return eris.New("fetcher: empty json body")
	case err != nil:
		return eris.Wrap(err, "fetcher: json opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return eris.Errorf("fetcher: json body is not an array (starts with %v)", tok)
	}

	for n := 0; dec.More(); n++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "fetcher: json decode cancelled")
		}
		var item T
		if err := dec.Decode(&item); err != nil {
			return eris.Wrapf(err, "fetcher: json element %d", n)
		}
		select {
		case out <- item:
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "fetcher: json decode cancelled")
		}
	}

	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "fetcher: json closing token")
	}
	return nil
}

// CollectJSONArray drains DecodeJSONArray into a slice. The reference data
// client uses it for the state and municipality lists.
func CollectJSONArray[T any](ctx context.Context, r io.Reader) ([]T, error) {
	outCh, errCh := DecodeJSONArray[T](ctx, r)
	var out []T
	for item := range outCh {
		out = append(out, item)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}
