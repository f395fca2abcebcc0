package signal

func (c *Client) handlePing() {
	c.sendJSON(frame{Type: framePong})
}
