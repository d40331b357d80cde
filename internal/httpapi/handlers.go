package httpapi

import (
	"fmt"
	"net/http"

	"github.com/ngalign/ngalign/internal/align"
	"github.com/ngalign/ngalign/internal/apierr"
	"github.com/ngalign/ngalign/internal/cube"
	"github.com/ngalign/ngalign/internal/imaging"
	"github.com/ngalign/ngalign/internal/layout"
	"github.com/ngalign/ngalign/internal/meta"
	"github.com/ngalign/ngalign/internal/ngvol"
	"github.com/ngalign/ngalign/internal/pyramid"
)

// writeErrorMessage implements spec §7's alignedslice/ngmeta error
// body: the error's message only.
func writeErrorMessage(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), apierr.HTTPStatus(apierr.KindOf(err)))
}

// writeErrorStack implements spec §7's ngshard error body: the full
// "%+v" stack trace pkg/errors attaches to every apierr value.
func writeErrorStack(w http.ResponseWriter, err error) {
	http.Error(w, fmt.Sprintf("%+v", err), apierr.HTTPStatus(apierr.KindOf(err)))
}

// alignedSliceRequest mirrors spec §6's alignedslice body keys.
type alignedSliceRequest struct {
	Img       string  `json:"img"`
	Dest      string  `json:"dest"`
	DestTmp   string  `json:"dest-tmp"`
	Transform string  `json:"transform"`
	BBox      string  `json:"bbox"`
	Slice     flexInt `json:"slice"`
	ShardSize int     `json:"shard-size"`
}

func (s *Server) handleAlignedSlice(w http.ResponseWriter, r *http.Request) {
	var req alignedSliceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, apierr.Wrap(apierr.RequestMalformed, err, "decoding request body"))
		return
	}

	vals, err := parseFloatArray(req.Transform, 6, "transform")
	if err != nil {
		writeErrorMessage(w, err)
		return
	}
	aff := imaging.Affine{A: vals[0], B: vals[1], C: vals[2], D: vals[3], E: vals[4], F: vals[5]}

	bbox, err := parseIntArray(req.BBox, 2, "bbox")
	if err != nil {
		writeErrorMessage(w, err)
		return
	}

	// alignedslice places no divisor requirement on shard-size (spec
	// §4.A edge cases); only ngshard/ngmeta require exactly 1024, so a
	// non-1024 value here is logged, not rejected.
	if req.ShardSize != layout.CubeShardSize {
		warnf("alignedslice: shard-size %d is not 1024; the resulting containers will not be usable by ngshard/ngmeta", req.ShardSize)
	}

	cfg := align.Config{
		Img:       req.Img,
		Dest:      req.Dest,
		DestTmp:   req.DestTmp,
		Transform: aff,
		W:         bbox[0],
		H:         bbox[1],
		Slice:     int(req.Slice),
		ShardSize: req.ShardSize,
	}

	if err := align.Run(r.Context(), s.Stores, cfg); err != nil {
		writeErrorMessage(w, err)
		return
	}
	writeSuccess(w)
}

// ngMetaRequest mirrors spec §6's ngmeta body keys.
type ngMetaRequest struct {
	Dest       string   `json:"dest"`
	MinZ       flexInt  `json:"minz"`
	MaxZ       flexInt  `json:"maxz"`
	Resolution flexInt  `json:"resolution"`
	BBox       string   `json:"bbox"`
	ShardSize  int      `json:"shard-size"`
	WriteRaw   flexBool `json:"writeRaw"`
}

func (s *Server) handleNgMeta(w http.ResponseWriter, r *http.Request) {
	var req ngMetaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, apierr.Wrap(apierr.RequestMalformed, err, "decoding request body"))
		return
	}

	if req.ShardSize != layout.CubeShardSize {
		writeErrorMessage(w, apierr.Newf(apierr.RequestMalformed, "shard-size must be %d, got %d", layout.CubeShardSize, req.ShardSize))
		return
	}

	bbox, err := parseIntArray(req.BBox, 2, "bbox")
	if err != nil {
		writeErrorMessage(w, err)
		return
	}

	dest := s.Stores.Bucket(req.Dest)
	err = meta.Write(r.Context(), dest, bbox[0], bbox[1], int(req.MinZ), int(req.MaxZ), int(req.Resolution), bool(req.WriteRaw))
	if err != nil {
		writeErrorMessage(w, err)
		return
	}
	writeSuccess(w)
}

// ngShardRequest mirrors spec §6's ngshard body keys. Unlike
// transform/bbox, start is a native JSON array `[cx,cy,cz]`, not a
// JSON-encoded string — the original handler reads
// config_file["start"] directly and indexes into it without a
// json.loads step.
type ngShardRequest struct {
	Dest      string   `json:"dest"`
	Source    string   `json:"source"`
	Start     []int    `json:"start"`
	MinZ      flexInt  `json:"minz"`
	MaxZ      flexInt  `json:"maxz"`
	BBox      string   `json:"bbox"`
	ShardSize int      `json:"shard-size"`
	WriteRaw  flexBool `json:"writeRaw"`
}

func (s *Server) handleNgShard(w http.ResponseWriter, r *http.Request) {
	var req ngShardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorStack(w, apierr.Wrap(apierr.RequestMalformed, err, "decoding request body"))
		return
	}

	if req.ShardSize != layout.CubeShardSize {
		writeErrorStack(w, apierr.Newf(apierr.RequestMalformed, "shard-size must be %d, got %d", layout.CubeShardSize, req.ShardSize))
		return
	}

	if len(req.Start) != 3 {
		writeErrorStack(w, apierr.Newf(apierr.RequestMalformed, "start must have 3 elements, got %d", len(req.Start)))
		return
	}
	start := req.Start
	bbox, err := parseIntArray(req.BBox, 2, "bbox")
	if err != nil {
		writeErrorStack(w, err)
		return
	}

	cubeCfg := cube.Config{
		Source:    s.Stores.Bucket(req.Source),
		CX:        start[0],
		CY:        start[1],
		CZ:        start[2],
		MinZ:      int(req.MinZ),
		MaxZ:      int(req.MaxZ),
		W:         bbox[0],
		H:         bbox[1],
		ShardSize: req.ShardSize,
	}

	result, err := cube.Run(r.Context(), cubeCfg)
	if err != nil {
		writeErrorStack(w, err)
		return
	}

	origin := [3]int{start[0] * req.ShardSize, start[1] * req.ShardSize, result.ZStart}
	writer := ngvol.NewStoreWriter(s.Stores.Bucket(req.Dest))
	if err := pyramid.Write(r.Context(), writer, result.Cube, origin, bool(req.WriteRaw)); err != nil {
		writeErrorStack(w, err)
		return
	}
	writeSuccess(w)
}
