package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const formatVersion = 1

// Encode serializes a session into its binary wire form:
// version byte, length-prefixed UserID and Role, AccountVersion, Status,
// the refresh hash, and the big-endian Unix timestamps.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(formatVersion)

	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)

	if len(s.Role) > 255 {
		return nil, errors.New("role too long")
	}
	buf.WriteByte(byte(len(s.Role)))
	buf.WriteString(s.Role)

	if err := binary.Write(&buf, binary.BigEndian, s.AccountVersion); err != nil {
		return nil, err
	}
	buf.WriteByte(s.Status)

	buf.Write(s.RefreshHash[:])

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a binary blob produced by [Encode].
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	userLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	userID := make([]byte, userLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	s.UserID = string(userID)

	roleLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	role := make([]byte, roleLen)
	if _, err := io.ReadFull(reader, role); err != nil {
		return nil, err
	}
	s.Role = string(role)

	if err := binary.Read(reader, binary.BigEndian, &s.AccountVersion); err != nil {
		return nil, err
	}

	status, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	s.Status = status

	if _, err := io.ReadFull(reader, s.RefreshHash[:]); err != nil {
		return nil, err
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	return s, nil
}
