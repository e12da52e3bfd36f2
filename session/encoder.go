package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	sessionFormatVersionCurrent = 2
	sessionFormatVersionV1      = 1
)

func writeShortString(buf *bytes.Buffer, field, value string) error {
	if len(value) > 255 {
		return errors.New(field + " too long")
	}
	buf.WriteByte(byte(len(value)))
	buf.WriteString(value)
	return nil
}

func readShortString(reader *bytes.Reader) (string, error) {
	length, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if err := writeShortString(&buf, "accountID", s.AccountID); err != nil {
		return nil, err
	}
	if err := writeShortString(&buf, "tenantID", s.TenantID); err != nil {
		return nil, err
	}
	if err := writeShortString(&buf, "deviceLabel", s.DeviceLabel); err != nil {
		return nil, err
	}
	if err := writeShortString(&buf, "browserLabel", s.BrowserLabel); err != nil {
		return nil, err
	}
	if err := writeShortString(&buf, "sourceIP", s.SourceIP); err != nil {
		return nil, err
	}
	if err := writeShortString(&buf, "approximateLocation", s.ApproximateLocation); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.LastActiveAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent && version != sessionFormatVersionV1 {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	if s.AccountID, err = readShortString(reader); err != nil {
		return nil, err
	}
	if s.TenantID, err = readShortString(reader); err != nil {
		return nil, err
	}
	if s.DeviceLabel, err = readShortString(reader); err != nil {
		return nil, err
	}
	if s.BrowserLabel, err = readShortString(reader); err != nil {
		return nil, err
	}
	if s.SourceIP, err = readShortString(reader); err != nil {
		return nil, err
	}
	if version == sessionFormatVersionCurrent {
		if s.ApproximateLocation, err = readShortString(reader); err != nil {
			return nil, err
		}
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.LastActiveAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	return s, nil
}
