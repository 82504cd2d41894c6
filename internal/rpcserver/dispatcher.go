// Package rpcserver reads framed requests from either transport (data
// channel or HTTP/2 stream), routes them to a resource operation, and
// writes the framed reply plus status trailer back (§4.11).
package rpcserver

import (
	"context"
	"fmt"
	"regexp"

	"github.com/go-logr/logr"
	"github.com/viamrobotics/micro-rdk-go/internal/grpcframe"
	"github.com/viamrobotics/micro-rdk-go/internal/resource"
	"github.com/viamrobotics/micro-rdk-go/internal/robot"
)

// Logger is the package-wide logger, silent by default.
var Logger logr.Logger = logr.Discard()

// methodPattern matches "/<namespace>.component.<subtype>.v1.<Anything>Service/<Operation>",
// the shape this core's method paths take; namespace and version are
// carried for forward-compatibility but not otherwise consulted.
var methodPattern = regexp.MustCompile(`^/[^.]+\.component\.([a-z_]+)\.v\d+\.\w+Service/(\w+)$`)

// ParseMethod decodes a gRPC method path into (subtype, operation), the
// first step of dispatch (§4.11).
func ParseMethod(method string) (resource.Subtype, string, error) {
	m := methodPattern.FindStringSubmatch(method)
	if m == nil {
		return "", "", fmt.Errorf("rpcserver: unrecognised method path %q", method)
	}
	subtype := resource.Subtype(m[1])
	if !subtype.Valid() {
		return "", "", fmt.Errorf("rpcserver: unrecognised subtype %q in method %q", subtype, method)
	}
	return subtype, m[2], nil
}

// Request is the already-decoded shape of one RPC call: the wire-level
// protobuf message parsing that produces it is outside core scope (§1), the
// dispatcher only needs method, target resource name, and an argument map.
type Request struct {
	Method string
	Name   string
	Args   map[string]interface{}
}

// Response carries the dispatcher's result back to the transport for
// framing.
type Response struct {
	Result map[string]interface{}
	Status grpcframe.Status
}

// Dispatcher routes requests to resources held by a robot.Robot.
type Dispatcher struct {
	robot *robot.Robot
}

// New returns a Dispatcher bound to robot.
func New(r *robot.Robot) *Dispatcher {
	return &Dispatcher{robot: r}
}

// Dispatch implements §4.11's full sequence: decode method, look up
// resource by name, dispatch by matching the variant tag against the
// expected subtype, map any operation error to a gRPC status.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	subtype, operation, err := ParseMethod(req.Method)
	if err != nil {
		return errorResponse(codeNotFound, err.Error())
	}

	variant, ok := d.robot.ResourceByName(subtype, req.Name)
	if !ok {
		// A resource by this name under another subtype is a variant
		// mismatch, not a missing resource.
		for _, rn := range d.robot.ResourceNames() {
			if rn.Name == req.Name {
				return errorResponse(codeInvalidArgument, fmt.Sprintf("resource %s is a %s, not a %s", req.Name, rn.Subtype, subtype))
			}
		}
		return errorResponse(codeNotFound, fmt.Sprintf("resource %s/%s not found", subtype, req.Name))
	}

	if variant.Subtype() != subtype {
		// Invariant: the variant's tag must match the expected subtype
		// (§4.11: "Variant mismatch -> InvalidArgument").
		return errorResponse(codeInvalidArgument, fmt.Sprintf("resource %s/%s is not a %s", subtype, req.Name, subtype))
	}

	result, err := invoke(ctx, variant, operation, req.Args)
	if err != nil {
		return errorResponse(mapOperationError(err), err.Error())
	}
	return Response{Result: result, Status: grpcframe.Status{Code: 0}}
}

func errorResponse(code int, msg string) Response {
	return Response{Status: grpcframe.Status{Code: code, Message: msg}}
}

// gRPC status codes this core maps operation errors onto (§7), named
// locally to avoid pulling in the full google.golang.org/grpc/codes
// vocabulary for five constants.
const (
	codeOK               = 0
	codeNotFound         = 5
	codeInvalidArgument  = 3
	codeInternal         = 13
	codeDeadlineExceeded = 4
)

// mapOperationError maps a resource operation error to a gRPC status code;
// everything not otherwise classified becomes Internal (§7: "Resource
// operation errors: surfaced to the caller as non-zero gRPC status ... do
// not terminate the session").
func mapOperationError(err error) int {
	if err == context.DeadlineExceeded {
		return codeDeadlineExceeded
	}
	return codeInternal
}
