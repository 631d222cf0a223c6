package export

// maxRecursionDepth — операционный потолок рекурсии по репостам и пересланным
// сообщениям. Платформа сама ограничивает глубину вложенности, но патологический
// ответ мог бы рекурсировать произвольно, поэтому за потолком обход обрывается
// с сообщением об ошибке.
const maxRecursionDepth = 128

// Context переносит глубину рекурсии и общий кэш сущностей через каждый
// рекурсивный вызов экспорта. Глубина 0 соответствует вложениям самого
// сообщения; каждый уровень репоста увеличивает ее на единицу.
type Context struct {
	Depth int
	Cache *EntityCache
}

// NextLevel возвращает контекст следующего уровня вложенности:
// глубина увеличена, кэш общий.
func (c Context) NextLevel() Context {
	return Context{
		Depth: c.Depth + 1,
		Cache: c.Cache,
	}
}
