package snapshot

import "strconv"

// Resolve выбирает снапшот по токену оператора.
//
// Токен-число трактуется как позиция в списке, начиная с 1 (1 - самый новый);
// всё остальное - как литеральное имя снапшота из списка. Оператор может
// ссылаться на сохранение и по номеру из вывода list, и по имени.
func Resolve(token string, list List) (ID, error) {
	if len(list) == 0 {
		return "", &Error{Kind: KindNoSaves}
	}

	if n, err := strconv.Atoi(token); err == nil {
		if n >= 1 && n <= len(list) {
			return list[n-1], nil
		}
		return "", &Error{Kind: KindInvalidIndex, Index: token}
	} else if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
		// Число, но вне диапазона int - заведомо неверная позиция
		return "", &Error{Kind: KindInvalidIndex, Index: token}
	}

	id := ID(token)
	if list.Contains(id) {
		return id, nil
	}
	return "", &Error{Kind: KindSaveNotFound, Save: token}
}
