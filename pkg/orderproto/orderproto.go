// Package orderproto is a minimal ASCII request/reply protocol carried
// as opaque application messages over a transport.Transport. It exists
// to give the cmd binaries something concrete to exchange: it has no
// bearing on frame, engine, or channel semantics, which never look
// inside the payload.
package orderproto

import (
	"fmt"
	"strings"
)

// Order is one client request: place qty units of item.
type Order struct {
	ID   uint64
	Item string
	Qty  int
}

// Reply is the server's response to one Order.
type Reply struct {
	OrderID uint64
	Status  string
}

// EncodeOrder renders o as a single line: "ORDER <id> <item> <qty>".
func EncodeOrder(o Order) []byte {
	return []byte(fmt.Sprintf("ORDER %d %s %d", o.ID, o.Item, o.Qty))
}

// DecodeOrder parses a line produced by EncodeOrder.
func DecodeOrder(b []byte) (Order, error) {
	var o Order
	var tag string
	n, err := fmt.Sscanf(string(b), "%s %d %s %d", &tag, &o.ID, &o.Item, &o.Qty)
	if err != nil || n != 4 || tag != "ORDER" {
		return Order{}, fmt.Errorf("orderproto: malformed order %q", string(b))
	}
	return o, nil
}

// EncodeReply renders r as a single line: "REPLY <order_id> <status>".
func EncodeReply(r Reply) []byte {
	status := r.Status
	if status == "" {
		status = "OK"
	}
	return []byte(fmt.Sprintf("REPLY %d %s", r.OrderID, status))
}

// DecodeReply parses a line produced by EncodeReply.
func DecodeReply(b []byte) (Reply, error) {
	fields := strings.Fields(string(b))
	if len(fields) != 3 || fields[0] != "REPLY" {
		return Reply{}, fmt.Errorf("orderproto: malformed reply %q", string(b))
	}
	var r Reply
	if _, err := fmt.Sscanf(fields[1], "%d", &r.OrderID); err != nil {
		return Reply{}, fmt.Errorf("orderproto: malformed order id %q", fields[1])
	}
	r.Status = fields[2]
	return r, nil
}
