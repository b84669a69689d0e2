// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package service

/*
Attachments are compressed before they are uploaded. pprof files written by the
Go runtime are already gzip compressed, while JIT logs (execution traces) are
not. The compression pipeline below detects the input compression from the
gzip magic bytes and converts the data to the configured output compression,
passing it through untouched when both match.
*/

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type compressionAlgorithm string

const (
	compressionAlgorithmNone compressionAlgorithm = "none"
	compressionAlgorithmGzip compressionAlgorithm = "gzip"
	compressionAlgorithmZstd compressionAlgorithm = "zstd"
)

type compression struct {
	algorithm compressionAlgorithm
	level     int
}

func (c compression) String() string {
	if c.algorithm == compressionAlgorithmNone {
		return string(c.algorithm)
	}
	return fmt.Sprintf("%s-%d", c.algorithm, c.level)
}

// Common compression algorithm and level combinations.
var (
	noCompression    = compression{algorithm: compressionAlgorithmNone}
	gzip1Compression = compression{algorithm: compressionAlgorithmGzip, level: 1}
	zstdCompression  = compression{algorithm: compressionAlgorithmZstd, level: 2}
)

var zstdLevels = map[int]zstd.EncoderLevel{
	1: zstd.SpeedFastest,
	2: zstd.SpeedDefault,
	3: zstd.SpeedBetterCompression,
	4: zstd.SpeedBestCompression,
}

func getZstdLevelOrDefault(level int) zstd.EncoderLevel {
	if l, ok := zstdLevels[level]; ok {
		return l
	}
	return zstd.SpeedDefault
}

// parseCompression parses configurations such as "zstd", "zstd-3", "gzip-6"
// or "none".
func parseCompression(config string) (compression, error) {
	algorithm, levelStr, hasLevel := strings.Cut(strings.ToLower(strings.TrimSpace(config)), "-")
	c := compression{algorithm: compressionAlgorithm(algorithm)}
	switch c.algorithm {
	case compressionAlgorithmNone:
		if hasLevel {
			return compression{}, fmt.Errorf("compression %q does not take a level", config)
		}
		return c, nil
	case compressionAlgorithmGzip:
		c.level = kgzip.DefaultCompression
	case compressionAlgorithmZstd:
		c.level = zstdCompression.level
	default:
		return compression{}, fmt.Errorf("unknown compression algorithm %q", algorithm)
	}
	if hasLevel {
		level, err := strconv.Atoi(levelStr)
		if err != nil {
			return compression{}, fmt.Errorf("invalid compression level %q: %w", levelStr, err)
		}
		c.level = level
	}
	return c, nil
}

// detectCompression reports the compression already applied to data.
func detectCompression(data []byte) compression {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return gzip1Compression
	}
	return noCompression
}

// recompress converts data from its detected compression to out.
func recompress(data []byte, out compression) ([]byte, error) {
	in := detectCompression(data)
	if in.algorithm == out.algorithm {
		return data, nil
	}
	var src io.Reader = bytes.NewReader(data)
	if in.algorithm == compressionAlgorithmGzip {
		gzr, err := kgzip.NewReader(src)
		if err != nil {
			return nil, err
		}
		defer gzr.Close()
		src = gzr
	}

	var buf bytes.Buffer
	var w io.WriteCloser
	switch out.algorithm {
	case compressionAlgorithmNone:
		_, err := io.Copy(&buf, src)
		return buf.Bytes(), err
	case compressionAlgorithmGzip:
		gzw, err := kgzip.NewWriterLevel(&buf, out.level)
		if err != nil {
			return nil, err
		}
		w = gzw
	case compressionAlgorithmZstd:
		zw, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(getZstdLevelOrDefault(out.level)))
		if err != nil {
			return nil, err
		}
		w = zw
	default:
		return nil, fmt.Errorf("unsupported recompression: %s -> %s", in, out)
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
