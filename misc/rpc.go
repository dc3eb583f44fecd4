package misc

// Nothing is the request or reply of rpc methods that have nothing to say.
// gob refuses empty structs, so it is a bool that is never read.
type Nothing bool
