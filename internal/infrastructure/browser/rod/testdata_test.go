package rod

const (
	BasicHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
	<h1>Hello World</h1>
</body>
</html>`

	ArticleHTML = `<!DOCTYPE html>
<html>
<head><title>Release notes</title><style>.x { color: red }</style></head>
<body>
	<nav><a href="/">Home</a></nav>
	<!-- build 1234 -->
	<article>
		<h2>Version 2.0</h2>
		<p>Faster    scheduling
		   and smaller memory use.</p>
		<ul><li>New resolver</li><li>Round timeouts</li></ul>
	</article>
	<script>console.log("tracking")</script>
</body>
</html>`
)
