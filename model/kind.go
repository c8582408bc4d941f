package model

import "strings"

// LayerKind is the closed classification of a layer, assigned exactly once
// when a layer enters a Model. Downstream code switches on the kind and
// never re-parses type strings.
type LayerKind int

const (
	KindUnknown LayerKind = iota
	KindConv
	KindDepthwiseConv
	KindDense
	KindPool
	KindBatchNorm
	KindAdd
	KindConcat
	KindFlatten
	KindDropout
	KindActivation
)

var kindNames = map[LayerKind]string{
	KindUnknown:       "unknown",
	KindConv:          "conv2d",
	KindDepthwiseConv: "depthwiseconv2d",
	KindDense:         "dense",
	KindPool:          "pooling",
	KindBatchNorm:     "batchnorm",
	KindAdd:           "add",
	KindConcat:        "concat",
	KindFlatten:       "flatten",
	KindDropout:       "dropout",
	KindActivation:    "activation",
}

func (k LayerKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// HasKernel reports whether the kind carries a convolutional weight tensor.
func (k LayerKind) HasKernel() bool {
	return k == KindConv || k == KindDepthwiseConv
}

// ParseLayerKind maps the ingestion vocabulary to a kind. Unrecognized
// types become KindUnknown rather than an error so a model with exotic
// layers still loads for the operations that do apply to it.
func ParseLayerKind(layerType string) LayerKind {
	switch strings.ToLower(strings.TrimSpace(layerType)) {
	case "conv2d":
		return KindConv
	case "depthwiseconv2d":
		return KindDepthwiseConv
	case "dense":
		return KindDense
	case "maxpooling2d", "averagepooling2d", "globalaveragepooling2d":
		return KindPool
	case "batchnorm", "batchnormalization":
		return KindBatchNorm
	case "add":
		return KindAdd
	case "concat", "concatenate":
		return KindConcat
	case "flatten":
		return KindFlatten
	case "dropout":
		return KindDropout
	case "activation":
		return KindActivation
	default:
		return KindUnknown
	}
}
