package entity

type PageContent struct {
	URL   string
	Title string
	Text  string
}

type Screenshot struct {
	Data   []byte
	Format string
	Width  int
	Height int
}
