// Package repository содержит реализации хранилища данных сервиса Whopify.
//
// Хранилище намеренно узкое: каждая операция работает с отдельной записью, а
// составные записи выполняются внутри транзакции хранилища. Это заменяет
// исходный цикл "прочитать весь документ — изменить — записать весь документ",
// при котором параллельные записи молча затирали друг друга.
package repository

import "errors"

// ErrCheckoutNotFound возвращается, если чекаут с указанным идентификатором не найден.
var (
	ErrCheckoutNotFound = errors.New("checkout not found")
	// ErrOrderNotFound возвращается, если заказ для указанного платёжного намерения не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists возвращается при попытке сохранить заказ с уже занятым идентификатором.
	ErrOrderExists = errors.New("order already exists")
)
