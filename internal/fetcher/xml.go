package fetcher

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// decodeElements decodes every element named elementName from r into a T and
// passes it to fn. Feeds declared in legacy charsets such as windows-1256 are
// transcoded to UTF-8. Decoding stops at the first error from fn.
func decodeElements[T any](ctx context.Context, r io.Reader, elementName string, fn func(T) error) error {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "fetcher: decode cancelled")
		}

		tok, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "fetcher: read xml token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != elementName {
			continue
		}

		var v T
		if err := decoder.DecodeElement(&v, &se); err != nil {
			return eris.Wrapf(err, "fetcher: decode <%s>", elementName)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}
