package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const legalPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>VitaeForge legal notice</title></head>
<body>
<h1>Legal notice</h1>
<p>VitaeForge stores the CVs you create so you can edit them from any device.
Documents are private to the account that created them.</p>
<p>When you ask for an AI rewrite, the text of that field is sent to the configured
language model provider and is not stored by VitaeForge beyond your CV.</p>
<p>Signing out revokes your access token. Deleting a CV removes it permanently.</p>
</body>
</html>
`

func legal(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(legalPage))
}
