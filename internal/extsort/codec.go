package extsort

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/phrazzld/yaha/internal/domain"
)

// maxDomainLength guards decoding against corrupt run files.
const maxDomainLength = 1024

var errCorruptRun = errors.New("corrupt run file")

// appendRecord encodes r as uvarint(len(domain)) domain uvarint(source) category.
func appendRecord(dst []byte, r domain.DomainRecord) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(r.Domain)))
	dst = append(dst, r.Domain...)
	dst = binary.AppendUvarint(dst, uint64(r.Source))
	return append(dst, byte(r.Category))
}

// readRecord decodes one record. It returns io.EOF only at a clean record
// boundary.
func readRecord(br *bufio.Reader) (domain.DomainRecord, error) {
	n, err := binary.ReadUvarint(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.DomainRecord{}, io.EOF
		}
		return domain.DomainRecord{}, fmt.Errorf("%w: length: %w", errCorruptRun, err)
	}
	if n == 0 || n > maxDomainLength {
		return domain.DomainRecord{}, fmt.Errorf("%w: domain length %d", errCorruptRun, n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return domain.DomainRecord{}, fmt.Errorf("%w: domain: %w", errCorruptRun, err)
	}

	src, err := binary.ReadUvarint(br)
	if err != nil {
		return domain.DomainRecord{}, fmt.Errorf("%w: source: %w", errCorruptRun, noEOF(err))
	}
	cat, err := br.ReadByte()
	if err != nil {
		return domain.DomainRecord{}, fmt.Errorf("%w: category: %w", errCorruptRun, noEOF(err))
	}

	return domain.DomainRecord{
		Domain:   string(buf),
		Source:   domain.SourceID(src),
		Category: domain.Category(cat),
	}, nil
}

func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
