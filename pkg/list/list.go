// Package list implements the intrusive doubly-linked list that backs the
// pager's free, pinned, and unpinned page lists. Links can remove themselves
// in O(1) and report which list they currently belong to, which is what the
// pager's eviction bookkeeping relies on.
package list

// List struct.
type List struct {
	head *Link
	tail *Link
}

// Create a new list.
func NewList() *List {
	return &List{}
}

// Get a pointer to the head of the list.
func (list *List) PeekHead() *Link {
	return list.head
}

// Get a pointer to the tail of the list.
func (list *List) PeekTail() *Link {
	return list.tail
}

// Add an element to the start of the list. Returns the added link.
func (list *List) PushHead(value any) *Link {
	newlink := &Link{list, nil, list.head, value}
	if list.head != nil {
		list.head.prev = newlink
	}
	list.head = newlink
	if list.tail == nil {
		list.tail = newlink
	}
	return newlink
}

// Add an element to the end of the list. Returns the added link.
func (list *List) PushTail(value any) *Link {
	newlink := &Link{list, list.tail, nil, value}
	if list.tail != nil {
		list.tail.next = newlink
	}
	list.tail = newlink
	if list.head == nil {
		list.head = newlink
	}
	return newlink
}

// Find the first link for which f evaluates to true, or nil.
func (list *List) Find(f func(*Link) bool) *Link {
	for cur := list.head; cur != nil; cur = cur.next {
		if f(cur) {
			return cur
		}
	}
	return nil
}

// Apply a function to every link in the list.
func (list *List) Map(f func(*Link)) {
	for cur := list.head; cur != nil; {
		next := cur.next
		f(cur)
		cur = next
	}
}

// Link struct.
type Link struct {
	list  *List
	prev  *Link
	next  *Link
	value any
}

// Get the list that this link is a part of.
func (link *Link) GetList() *List {
	return link.list
}

// Get the link's value.
func (link *Link) GetValue() any {
	return link.value
}

// Set the link's value.
func (link *Link) SetValue(value any) {
	link.value = value
}

// Get the link's prev.
func (link *Link) GetPrev() *Link {
	return link.prev
}

// Get the link's next.
func (link *Link) GetNext() *Link {
	return link.next
}

// PopSelf removes this link from its list.
func (link *Link) PopSelf() {
	if link.prev != nil {
		link.prev.next = link.next
	} else if link.list != nil {
		link.list.head = link.next
	}
	if link.next != nil {
		link.next.prev = link.prev
	} else if link.list != nil {
		link.list.tail = link.prev
	}
	link.list = nil
	link.prev = nil
	link.next = nil
}
