/*
Package sstable contains the sorted table layer of a log-structured
merge-tree: a Builder which packs an ascending stream of key/value pairs
into an immutable, block-structured file, and a Table with an Iterator
which read it back as a single, seekable, ascending sequence.

Data Structure Documentation

Table

A table contains a series of data blocks followed by a block index and
a footer.

    Table layout:
    +---------+---------+---------+-------------+---------------------------+
    | block 1 |   ...   | block n | block index | index offset (4 bytes LE) |
    +---------+---------+---------+-------------+---------------------------+

    Block index:
    +--------------------------------+------------------+--------------------------+-------+
    | key length 1 (varint)          |  first key 1     | block offset 1 (4 bytes) |  ...  |
    +--------------------------------+------------------+--------------------------+-------+

Block offsets are relative to the start of the file, the first block
starts at offset 0 and each block ends where the next one (or the block
index) begins.

Block

A block is an encoded key/value block (see package block), optionally
compressed and followed by a compression type indicator and a checksum.

    Block layout:
    +----------------------------+---------------------------+-----------------------------+
    | (compressed) block payload | compression type (1-byte) | xxhash64 checksum (8 bytes) |
    +----------------------------+---------------------------+-----------------------------+

The checksum covers the payload and the compression type.
*/
package sstable
