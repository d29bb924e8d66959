// Package codec implements the two-way translation between the wire XML
// format and the tree.Node value model (§4.3), plus classification of a
// decoded message as hello / rpc-reply / notification and extraction of a
// classified error from an rpc-reply. It maps the tree's reserved "$"/"_"
// keys to XML attributes and element text in both directions.
//
// Grounded on the teacher's common/codec/codec.go + common/model.go, but
// reworked to decode into the dynamic tree.Node representation this spec
// requires rather than a fixed Go struct per message type.
package codec

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/xlnconf/netconf/netconf/ncerrors"
	"github.com/xlnconf/netconf/tree"
)

// MessageKind classifies a decoded top-level NETCONF message.
type MessageKind int

// The message kinds the session dispatcher must discriminate between.
const (
	KindUnknown MessageKind = iota
	KindHello
	KindRPCReply
	KindNotification
)

const (
	elemHello        = "hello"
	elemRPCReply     = "rpc-reply"
	elemNotification = "notification"
)

// Encode renders root, a mapping with exactly one top-level key (the
// element name), as an XML document including the standard XML header.
func Encode(root *tree.Node) ([]byte, error) {
	if !root.IsMapping() || root.Map.Len() != 1 {
		return nil, errors.New("codec: Encode requires a mapping with exactly one root key")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	name := root.Map.Keys()[0]
	if err := encodeElement(&buf, name, root.Get(name)); err != nil {
		return nil, errors.Wrap(err, "codec: encode failed")
	}
	return buf.Bytes(), nil
}

func encodeElement(buf *bytes.Buffer, name string, n *tree.Node) error {
	if n == nil {
		n = tree.NewNull()
	}

	if n.IsList() {
		for _, item := range n.List {
			if err := encodeElement(buf, name, item); err != nil {
				return err
			}
		}
		return nil
	}

	if !n.IsMapping() {
		return encodePrimitiveElement(buf, name, n)
	}

	fmt.Fprintf(buf, "<%s", name)
	if attrs := n.Get(tree.AttrsKey); attrs.IsMapping() {
		for _, k := range attrs.Map.Keys() {
			v, _ := attrs.Map.Get(k)
			fmt.Fprintf(buf, " %s=%q", k, escapeAttr(stringify(v)))
		}
	}

	text := n.Get(tree.TextKey)
	childKeys := childKeysExcludingReserved(n)

	if text == nil && len(childKeys) == 0 {
		buf.WriteString("/>")
		return nil
	}

	buf.WriteString(">")
	if text != nil {
		if err := writeEscapedText(buf, stringify(text)); err != nil {
			return err
		}
	}
	for _, key := range childKeys {
		if err := encodeElement(buf, key, n.Get(key)); err != nil {
			return err
		}
	}
	fmt.Fprintf(buf, "</%s>", name)
	return nil
}

func encodePrimitiveElement(buf *bytes.Buffer, name string, n *tree.Node) error {
	if n.Kind == tree.KindNull {
		fmt.Fprintf(buf, "<%s/>", name)
		return nil
	}
	fmt.Fprintf(buf, "<%s>", name)
	if err := writeEscapedText(buf, stringify(n)); err != nil {
		return err
	}
	fmt.Fprintf(buf, "</%s>", name)
	return nil
}

func childKeysExcludingReserved(n *tree.Node) []string {
	var out []string
	for _, k := range n.Map.Keys() {
		if k == tree.AttrsKey || k == tree.TextKey {
			continue
		}
		out = append(out, k)
	}
	return out
}

func stringify(n *tree.Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case tree.KindString:
		return n.Str
	case tree.KindNumber:
		return strconv.FormatFloat(n.Num, 'f', -1, 64)
	case tree.KindBool:
		return strconv.FormatBool(n.Bool)
	default:
		return ""
	}
}

func writeEscapedText(buf *bytes.Buffer, s string) error {
	return xml.EscapeText(buf, []byte(s))
}

func escapeAttr(s string) string {
	r := strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

// Decode parses an XML document into a tree.Node mapping keyed by the
// document's single root element name, e.g. decoding
// "<rpc-reply message-id=\"1\"><data>..</data></rpc-reply>" yields
// {rpc-reply: {$: {message-id: 1}, data: {...}}} (attribute values are
// coerced like text, so the message-id is the number 1).
//
// Attributes become a "$" sub-mapping, suppressed when ignoreAttrs is set.
// An element with more than one child sharing a name becomes a list under
// that name; a lone child becomes a direct sub-mapping. Numeric-looking
// text is coerced to a number. Whitespace is trimmed.
func Decode(b []byte, ignoreAttrs bool) (*tree.Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("codec: no root element found")
			}
			return nil, errors.Wrap(err, "codec: malformed XML")
		}
		if start, ok := tok.(xml.StartElement); ok {
			body, err := decodeElement(dec, start, ignoreAttrs)
			if err != nil {
				return nil, err
			}
			root := tree.NewMapping()
			root.Set(start.Name.Local, body)
			return root, nil
		}
	}
}

func decodeElement(dec *xml.Decoder, start xml.StartElement, ignoreAttrs bool) (*tree.Node, error) {
	var attrs *tree.Node
	if !ignoreAttrs && len(start.Attr) > 0 {
		attrs = tree.NewMapping()
		for _, a := range start.Attr {
			attrs.Set(a.Name.Local, coerce(a.Value))
		}
	}

	children := tree.NewOrderedMap()
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "codec: malformed XML")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(dec, t, ignoreAttrs)
			if err != nil {
				return nil, err
			}
			appendChild(children, t.Name.Local, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			return buildElementNode(attrs, children, strings.TrimSpace(text.String())), nil
		}
	}
}

func appendChild(children *tree.OrderedMap, key string, child *tree.Node) {
	existing, ok := children.Get(key)
	if !ok {
		children.Set(key, child)
		return
	}
	if existing.IsList() {
		existing.List = append(existing.List, child)
		return
	}
	children.Set(key, tree.NewList(existing, child))
}

func buildElementNode(attrs *tree.Node, children *tree.OrderedMap, text string) *tree.Node {
	hasChildren := children.Len() > 0
	hasAttrs := attrs != nil

	if !hasChildren && !hasAttrs {
		if text == "" {
			return tree.NewNull()
		}
		return coerce(text)
	}

	n := tree.NewMapping()
	if hasAttrs {
		n.Set(tree.AttrsKey, attrs)
	}
	if text != "" {
		n.Set(tree.TextKey, coerce(text))
	}
	for _, key := range children.Keys() {
		v, _ := children.Get(key)
		n.Set(key, v)
	}
	return n
}

func coerce(s string) *tree.Node {
	if s == "" {
		return tree.NewNull()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return tree.NewNumber(f)
	}
	return tree.NewString(s)
}

// Classify reports the MessageKind of a decoded top-level message and
// returns the body node (the value under the single root key), or
// KindUnknown/nil if the root element is none of hello/rpc-reply/
// notification.
func Classify(root *tree.Node) (MessageKind, *tree.Node) {
	if !root.IsMapping() || root.Map.Len() != 1 {
		return KindUnknown, nil
	}
	name := root.Map.Keys()[0]
	body := root.Get(name)
	switch name {
	case elemHello:
		return KindHello, body
	case elemRPCReply:
		return KindRPCReply, body
	case elemNotification:
		return KindNotification, body
	default:
		return KindUnknown, nil
	}
}

// ExtractError reports the classified error carried by an rpc-reply body
// (the node returned by Classify for KindRPCReply), or nil if the reply
// carries no rpc-error.
func ExtractError(replyBody *tree.Node) *ncerrors.Error {
	if !replyBody.IsMapping() {
		return nil
	}
	errNode := replyBody.Get("rpc-error")
	if errNode == nil {
		return nil
	}
	if errNode.IsList() {
		if len(errNode.List) == 0 {
			return nil
		}
		errNode = errNode.List[0]
	}
	return classifyRPCError(errNode)
}

func classifyRPCError(e *tree.Node) *ncerrors.Error {
	errType := textOf(e.Get("error-type"))
	tag := textOf(e.Get("error-tag"))
	severity := textOf(e.Get("error-severity"))
	info := e.Get("error-info")

	msg := errorMessage(e, tag, info)

	detail := fmt.Sprintf("netconf rpc-error [type=%s tag=%s severity=%s]: %s", errType, tag, severity, msg)
	return ncerrors.New(ncerrors.KindProtocol, detail)
}

// errorMessage implements the precedence of §4.3: explicit error-message
// text, else a tag-inferred message incorporating bad-element/
// bad-namespace, else the raw tag.
func errorMessage(e *tree.Node, tag string, info *tree.Node) string {
	if m := e.Get("error-message"); m != nil {
		if text := messageNodeText(m); text != "" {
			return text
		}
	}

	if inferred, ok := inferMessageFromTag(tag, info); ok {
		return inferred
	}

	return tag
}

func messageNodeText(m *tree.Node) string {
	if m.IsMapping() {
		if t := m.Get(tree.TextKey); t != nil {
			return textOf(t)
		}
		return ""
	}
	return textOf(m)
}

func inferMessageFromTag(tag string, info *tree.Node) (string, bool) {
	switch tag {
	case "unknown-element":
		if el := infoField(info, "bad-element"); el != "" {
			return fmt.Sprintf("unknown element %q", el), true
		}
		return "unknown element", true
	case "unknown-namespace":
		el := infoField(info, "bad-element")
		ns := infoField(info, "bad-namespace")
		switch {
		case el != "" && ns != "":
			return fmt.Sprintf("unknown namespace %q for element %q", ns, el), true
		case ns != "":
			return fmt.Sprintf("unknown namespace %q", ns), true
		default:
			return "unknown namespace", true
		}
	case "data-exists":
		return "data already exists", true
	default:
		return "", false
	}
}

func infoField(info *tree.Node, key string) string {
	if !info.IsMapping() {
		return ""
	}
	return textOf(info.Get(key))
}

func textOf(n *tree.Node) string {
	if n == nil {
		return ""
	}
	if n.IsMapping() {
		return textOf(n.Get(tree.TextKey))
	}
	return stringify(n)
}
