// Package protocol provides an object representation of a socket.io message.
//
// A message travels inside one Engine.IO text frame, followed by one binary
// frame per attachment for the binary variants:
//
//	<engine type><message type>[<# of binary attachments>-][<namespace>,][<acknowledgment id>][JSON-stringified payload without binary]
//	[<binary attachment>]
//
// or as a real example:
//
//	451-/admin,456["project:delete",{"_placeholder":true,"num":0}]
//	<bytes>
//
// this is with the API:
//
//	Message.Type
//	Message.Namespace
//	Message.AckID
//	Message.Event
//	Message.Args
//	Message.Attachments
//
// Arguments stay as raw JSON with the placeholders in place, turning them back
// into values is left to the serialize package.
package protocol
