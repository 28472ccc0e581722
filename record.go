package ffs

import (
	"encoding/binary"
	"hash/crc32"
)

// Record magics. A byte, not a multi-byte word, so a torn write that leaves
// only a single byte behind still decodes unambiguously as "not a full
// header" rather than risking a false-positive resync on a half-written
// 32-bit magic.
const (
	magicAreaHeader byte = 0xFA
	magicInode      byte = 0xA1
	magicBlock      byte = 0xB2
	magicErased     byte = 0xFF // NOR erased value; also "nothing written here"
)

// areaHeaderSize is the fixed on-flash size of an area header.
const areaHeaderSize = 10 // magic(1) + id(4) + gcSeq(1) + reserved(4)

// areaHeader is the first thing written to every area, scratch or not.
type areaHeader struct {
	id    uint32 // NoneArea for the scratch area
	gcSeq uint8
}

func (h areaHeader) encode() []byte {
	buf := make([]byte, areaHeaderSize)
	buf[0] = magicAreaHeader
	binary.LittleEndian.PutUint32(buf[1:5], h.id)
	buf[5] = h.gcSeq
	// buf[6:10] reserved, left zero
	return buf
}

func decodeAreaHeader(buf []byte) (areaHeader, error) {
	if len(buf) < areaHeaderSize {
		return areaHeader{}, ErrTorn
	}
	if buf[0] != magicAreaHeader {
		return areaHeader{}, ErrBadMagic
	}
	return areaHeader{
		id:    binary.LittleEndian.Uint32(buf[1:5]),
		gcSeq: buf[5],
	}, nil
}

// inodeRecord is the on-flash representation of one directory or file
// inode's current state (spec.md §3). A record with ParentID == NoneID
// marks a deletion of ID.
type inodeRecord struct {
	ID       ID
	Seq      uint32
	ParentID ID
	Name     string
}

// encode serializes the record including its trailing CRC.
func (r inodeRecord) encode() []byte {
	nameBytes := []byte(r.Name)
	if len(nameBytes) > 255 {
		nameBytes = nameBytes[:255]
	}
	size := 1 + 4 + 4 + 4 + 1 + len(nameBytes) + 4
	buf := make([]byte, size)
	buf[0] = magicInode
	binary.LittleEndian.PutUint32(buf[1:5], uint32(r.ID))
	binary.LittleEndian.PutUint32(buf[5:9], r.Seq)
	binary.LittleEndian.PutUint32(buf[9:13], uint32(r.ParentID))
	buf[13] = byte(len(nameBytes))
	copy(buf[14:], nameBytes)
	crc := crc32.ChecksumIEEE(buf[:14+len(nameBytes)])
	binary.LittleEndian.PutUint32(buf[14+len(nameBytes):], crc)
	return buf
}

// encodedInodeRecordSize returns the on-flash byte length of an inode
// record carrying the given filename, without encoding it.
func encodedInodeRecordSize(name string) int {
	n := len(name)
	if n > 255 {
		n = 255
	}
	return 1 + 4 + 4 + 4 + 1 + n + 4
}

// decodeInodeRecord decodes one record starting at the beginning of buf.
// It returns the number of bytes consumed so the caller can advance its
// cursor; ErrTorn if buf is too short to hold the whole record, ErrBadMagic
// if it doesn't start with an inode magic, or ErrBadCRC if the trailing CRC
// doesn't match.
func decodeInodeRecord(buf []byte) (inodeRecord, int, error) {
	if len(buf) < 14 {
		return inodeRecord{}, 0, ErrTorn
	}
	if buf[0] != magicInode {
		return inodeRecord{}, 0, ErrBadMagic
	}
	nameLen := int(buf[13])
	total := 14 + nameLen + 4
	if len(buf) < total {
		return inodeRecord{}, 0, ErrTorn
	}
	crc := crc32.ChecksumIEEE(buf[:14+nameLen])
	if binary.LittleEndian.Uint32(buf[14+nameLen:total]) != crc {
		return inodeRecord{}, 0, ErrBadCRC
	}
	r := inodeRecord{
		ID:       ID(binary.LittleEndian.Uint32(buf[1:5])),
		Seq:      binary.LittleEndian.Uint32(buf[5:9]),
		ParentID: ID(binary.LittleEndian.Uint32(buf[9:13])),
		Name:     string(buf[14 : 14+nameLen]),
	}
	return r, total, nil
}

// blockRecord is the on-flash representation of one data block of a file
// (spec.md §3). Blocks form a singly-linked list from last to first via
// PrevBlockID (NoneID terminates the chain).
type blockRecord struct {
	ID         ID
	Seq        uint32
	InodeID    ID
	PrevBlock  ID
	Data       []byte
}

func (r blockRecord) encode() []byte {
	size := 1 + 4 + 4 + 4 + 2 + 4 + len(r.Data) + 4
	buf := make([]byte, size)
	buf[0] = magicBlock
	binary.LittleEndian.PutUint32(buf[1:5], uint32(r.ID))
	binary.LittleEndian.PutUint32(buf[5:9], r.Seq)
	binary.LittleEndian.PutUint32(buf[9:13], uint32(r.InodeID))
	binary.LittleEndian.PutUint16(buf[13:15], uint16(len(r.Data)))
	binary.LittleEndian.PutUint32(buf[15:19], uint32(r.PrevBlock))
	copy(buf[19:], r.Data)
	crc := crc32.ChecksumIEEE(buf[:19+len(r.Data)])
	binary.LittleEndian.PutUint32(buf[19+len(r.Data):], crc)
	return buf
}

func encodedBlockRecordSize(dataLen int) int {
	return 1 + 4 + 4 + 4 + 2 + 4 + dataLen + 4
}

func decodeBlockRecord(buf []byte) (blockRecord, int, error) {
	if len(buf) < 19 {
		return blockRecord{}, 0, ErrTorn
	}
	if buf[0] != magicBlock {
		return blockRecord{}, 0, ErrBadMagic
	}
	dataLen := int(binary.LittleEndian.Uint16(buf[13:15]))
	total := 19 + dataLen + 4
	if len(buf) < total {
		return blockRecord{}, 0, ErrTorn
	}
	crc := crc32.ChecksumIEEE(buf[:19+dataLen])
	if binary.LittleEndian.Uint32(buf[19+dataLen:total]) != crc {
		return blockRecord{}, 0, ErrBadCRC
	}
	data := make([]byte, dataLen)
	copy(data, buf[19:19+dataLen])
	r := blockRecord{
		ID:        ID(binary.LittleEndian.Uint32(buf[1:5])),
		Seq:       binary.LittleEndian.Uint32(buf[5:9]),
		InodeID:   ID(binary.LittleEndian.Uint32(buf[9:13])),
		PrevBlock: ID(binary.LittleEndian.Uint32(buf[15:19])),
		Data:      data,
	}
	return r, total, nil
}

// peekRecordKind looks at the magic byte only, to classify a record without
// committing to a decode. Detect's replay loop switches on the magic byte
// directly and does not call it.
func peekRecordKind(b byte) (isRecord bool, isInode bool) {
	switch b {
	case magicInode:
		return true, true
	case magicBlock:
		return true, false
	default:
		return false, false
	}
}
